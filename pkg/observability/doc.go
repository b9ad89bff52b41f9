// Package observability provides OpenTelemetry tracing and metrics for the
// node process: the event store, the brain-cycle orchestrator, the
// kill switch, and the karma settlement path.
//
// # Tracing and metrics
//
// Initialize once at process startup:
//
//	provider, err := observability.New(ctx, observability.DefaultConfig())
//	defer provider.Shutdown(ctx)
//
// Wrap an operation to get both a span and RED metrics:
//
//	ctx, done := provider.TrackOperation(ctx, "append_event",
//		observability.EventOperation(event.ID, event.Type, event.Seq)...)
//	err := store.Append(ctx, draft)
//	done(err)
//
// # SLOs
//
// Track latency/success objectives per operation and read back burn rate:
//
//	tracker := observability.NewSLOTracker()
//	tracker.SetTarget(&observability.SLOTarget{Operation: "run_cycle", LatencyP99: 10 * time.Second, SuccessRate: 0.99, WindowHours: 24})
//	tracker.Record(observability.SLOObservation{Operation: "run_cycle", Latency: elapsed, Success: err == nil})
//
// # Audit timeline
//
// A queryable index over cycle phases, escalations, and settlements,
// independent of the event log itself:
//
//	timeline := observability.NewAuditTimeline()
//	timeline.Record(observability.TimelineEntry{EntryType: observability.EntryTypeEscalation, RunID: cycleID, Summary: "kill switch L2"})
package observability
