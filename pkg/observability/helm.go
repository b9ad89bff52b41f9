// Package observability provides node-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Node-specific semantic convention attributes.
var (
	// Event store attributes
	AttrEventID   = attribute.Key("b1e55ed.event.id")
	AttrEventType = attribute.Key("b1e55ed.event.type")
	AttrEventSeq  = attribute.Key("b1e55ed.event.seq")

	// Brain-cycle attributes
	AttrCyclePhase      = attribute.Key("b1e55ed.cycle.phase")
	AttrCycleAsset      = attribute.Key("b1e55ed.cycle.asset")
	AttrCycleRegime     = attribute.Key("b1e55ed.cycle.regime")
	AttrCycleConviction = attribute.Key("b1e55ed.cycle.conviction")

	// Kill-switch attributes
	AttrKillSwitchFrom  = attribute.Key("b1e55ed.kill_switch.from")
	AttrKillSwitchTo    = attribute.Key("b1e55ed.kill_switch.to")
	AttrKillSwitchActor = attribute.Key("b1e55ed.kill_switch.actor")

	// Karma/settlement attributes
	AttrKarmaIntentID = attribute.Key("b1e55ed.karma.intent_id")
	AttrKarmaAmount   = attribute.Key("b1e55ed.karma.amount")
	AttrKarmaSettled  = attribute.Key("b1e55ed.karma.settled")

	// Identity/signing attributes
	AttrSignerNodeID = attribute.Key("b1e55ed.signer.node_id")
)

// EventOperation creates attributes for an event-store append.
func EventOperation(eventID, eventType string, seq int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventID.String(eventID),
		AttrEventType.String(eventType),
		AttrEventSeq.Int64(seq),
	}
}

// CycleOperation creates attributes for a brain-cycle phase.
func CycleOperation(phase, asset, regime string, conviction float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCyclePhase.String(phase),
		AttrCycleAsset.String(asset),
		AttrCycleRegime.String(regime),
		AttrCycleConviction.Float64(conviction),
	}
}

// KillSwitchOperation creates attributes for a kill-switch level transition.
func KillSwitchOperation(from, to, actor string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrKillSwitchFrom.String(from),
		AttrKillSwitchTo.String(to),
		AttrKillSwitchActor.String(actor),
	}
}

// KarmaOperation creates attributes for a karma intent or settlement.
func KarmaOperation(intentID string, amount float64, settled bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrKarmaIntentID.String(intentID),
		AttrKarmaAmount.Float64(amount),
		AttrKarmaSettled.Bool(settled),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus sets the span status based on error.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
