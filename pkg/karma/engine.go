package karma

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/P-U-C/b1e55ed/pkg/canonicalize"
	"github.com/P-U-C/b1e55ed/pkg/crypto"
	"github.com/P-U-C/b1e55ed/pkg/eventstore"
	"github.com/P-U-C/b1e55ed/pkg/finance"
	"github.com/P-U-C/b1e55ed/pkg/receipts/policies"
)

// Engine is the karma settlement engine. One exists per node. RecordIntent
// and Settle carry a non-blocking guarantee: whatever goes wrong inside
// them is logged, never returned as an error that could abort the trade
// execution path calling them — karma is a side effect of trading, never a
// precondition for it.
type Engine struct {
	mu          sync.Mutex
	store       Store
	es          *eventstore.EventStore
	signer      crypto.Signer
	policy      Policy
	settledOnce bool
	log         *slog.Logger
	clock       func() time.Time
	enforcer    *policies.PolicyEnforcer
}

// NewEngine restores policy and settlement history from es and store, then
// returns an Engine ready to record intents and settlements. If no policy
// has ever been persisted, defaultPolicy is used — normally the
// conservative karma-disabled default from pkg/config.
func NewEngine(ctx context.Context, store Store, es *eventstore.EventStore, signer crypto.Signer, defaultPolicy Policy, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{store: store, es: es, signer: signer, policy: defaultPolicy, log: log, clock: time.Now,
		enforcer: policies.NewPolicyEnforcer(false)}

	if p, ok, err := store.GetPolicy(ctx); err != nil {
		return nil, err
	} else if ok {
		e.policy = p
	}

	if _, err := es.LatestOfType(ctx, eventstore.KindKarmaSettle); err == nil {
		e.settledOnce = true
	}

	return e, nil
}

// Enabled reports whether karma is in effect: both the policy's Enabled
// flag and a nonzero percentage must hold.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.active()
}

// RecordIntent records the intent to route a share of realized profit to
// the treasury, if and only if karma is enabled, a treasury address is
// configured, the close happened in live execution mode, and the realized
// PnL is positive. Any other outcome — including every internal failure —
// returns a nil Intent without propagating an error, by design: this must
// never be the reason a trade-closing call fails.
func (e *Engine) RecordIntent(ctx context.Context, tradeID string, realizedPnL finance.Money, executionMode string) *Intent {
	e.mu.Lock()
	policy := e.policy
	e.mu.Unlock()

	if !policy.active() {
		return nil
	}
	if policy.TreasuryAddress == "" {
		e.log.Warn("karma: treasury address not configured, skipping intent", "trade_id", tradeID)
		return nil
	}
	if executionMode != "live" {
		return nil
	}
	if !realizedPnL.IsPositive() {
		return nil
	}

	amount := realizedPnL.MulFrac(policy.Percentage)
	in := Intent{
		IntentID:        uuid.New().String(),
		TradeID:         tradeID,
		RealizedPnL:     realizedPnL,
		Amount:          amount,
		TreasuryAddress: policy.TreasuryAddress,
		Status:          StatusPending,
		CreatedAt:       e.clock(),
	}

	sig, keyID, err := e.sign(in.IntentID, in.TradeID, in.Amount)
	if err != nil {
		e.log.Error("karma: sign intent failed", "trade_id", tradeID, "err", err)
		return nil
	}
	in.Signature = sig
	in.SignerKeyID = keyID

	if err := e.store.SaveIntent(ctx, in); err != nil {
		e.log.Error("karma: save intent failed", "trade_id", tradeID, "err", err)
		return nil
	}

	if _, err := e.es.Append(ctx, eventstore.KindKarmaIntent, in); err != nil {
		e.log.Error("karma: append intent event failed", "trade_id", tradeID, "err", err)
		return nil
	}

	return &in
}

// GetPendingIntents returns intents recorded but not yet settled.
func (e *Engine) GetPendingIntents(ctx context.Context) ([]Intent, error) {
	return e.store.ListPending(ctx)
}

// Settle atomically settles a batch of intents against one transaction,
// emitting both a Settlement and a Receipt event. Like RecordIntent, this
// never propagates an internal failure as an error — it logs and returns
// nil. Settlement is gated on live execution mode: paper PnL intents
// should never exist (RecordIntent already refuses to create them), but
// Settle re-checks mode anyway as a second line of defense.
func (e *Engine) Settle(ctx context.Context, intentIDs []string, txHash string, executionMode string) *Settlement {
	if len(intentIDs) == 0 {
		return nil
	}
	e.mu.Lock()
	enabled := e.policy.active()
	e.mu.Unlock()
	if !enabled {
		return nil
	}
	if executionMode != "live" {
		e.log.Warn("karma: settle attempted outside live mode, refusing", "intent_count", len(intentIDs))
		return nil
	}

	var total finance.Money
	intents := make([]Intent, 0, len(intentIDs))
	for i, id := range intentIDs {
		in, err := e.store.GetIntent(ctx, id)
		if err != nil {
			e.log.Error("karma: settle failed to load intent", "intent_id", id, "err", err)
			return nil
		}
		if i == 0 {
			total = finance.Money{Currency: in.Amount.Currency, Scale: in.Amount.Scale}
		}
		sum, err := total.Add(in.Amount)
		if err != nil {
			e.log.Error("karma: settle currency mismatch", "intent_id", id, "err", err)
			return nil
		}
		total = sum
		intents = append(intents, in)
	}

	settlement := Settlement{
		SettlementID: uuid.New().String(),
		IntentIDs:    intentIDs,
		TxHash:       txHash,
		TotalAmount:  total,
		SettledAt:    e.clock(),
	}

	receipt := Receipt{
		ReceiptID:    uuid.New().String(),
		SettlementID: settlement.SettlementID,
		IntentIDs:    intentIDs,
		TxHash:       txHash,
		TotalAmount:  total,
		IssuedAt:     e.clock(),
	}
	sig, keyID, err := e.sign(receipt.ReceiptID, receipt.SettlementID, receipt.TotalAmount)
	if err != nil {
		e.log.Error("karma: sign receipt failed", "err", err)
		return nil
	}
	receipt.Signature = sig
	receipt.SignerKeyID = keyID

	if err := e.store.MarkSettled(ctx, intentIDs); err != nil {
		e.log.Error("karma: mark settled failed", "err", err)
		return nil
	}
	if err := e.store.SaveReceipt(ctx, receipt); err != nil {
		e.log.Error("karma: save receipt failed", "err", err)
		return nil
	}

	_, err = e.es.AppendBatch(ctx, []eventstore.AppendInput{
		{Type: eventstore.KindKarmaSettle, Payload: settlement},
		{Type: eventstore.KindKarmaReceipt, Payload: receipt},
	})
	if err != nil {
		e.log.Error("karma: append settlement events failed", "err", err)
		return nil
	}

	e.mu.Lock()
	e.settledOnce = true
	e.mu.Unlock()

	e.checkReceiptPolicy(receipt)

	return &settlement
}

// checkReceiptPolicy validates receipt against the FUNDS_TRANSFER receipt
// policy (required evidence classes, retry limit). A violation is logged,
// never returned — the money has already moved by the time this runs, so
// refusing the settlement here would only hide the transfer from the
// ledger without undoing it. The evidence map and content hash exist so a
// later audit pass, not this call, is what actually acts on a violation.
func (e *Engine) checkReceiptPolicy(receipt Receipt) {
	contentHash, err := canonicalize.CanonicalHash(receipt)
	if err != nil {
		e.log.Warn("karma: receipt content hash failed", "receipt_id", receipt.ReceiptID, "err", err)
		return
	}

	effect := &policies.Effect{
		EffectID:       receipt.SettlementID,
		EffectType:     policies.EffectTypeFundsTransfer,
		IdempotencyKey: receipt.SettlementID,
		Principal:      "karma-engine",
		Target:         receipt.TxHash,
	}
	preceipt := &policies.Receipt{
		ReceiptID:      receipt.ReceiptID,
		EffectID:       receipt.SettlementID,
		EffectType:     policies.EffectTypeFundsTransfer,
		Status:         policies.ReceiptStatusSuccess,
		ContentHash:    contentHash,
		IdempotencyKey: receipt.SettlementID,
		Timestamp:      receipt.IssuedAt,
		Evidence: map[string]string{
			"transaction_id": receipt.TxHash,
			"amount_hash":    contentHash,
		},
	}

	if err := e.enforcer.ValidateReceipt(preceipt, effect); err != nil {
		e.log.Warn("karma: settlement receipt policy violation", "settlement_id", receipt.SettlementID, "err", err)
	}
}

// GetReceipts returns every settlement receipt issued so far.
func (e *Engine) GetReceipts(ctx context.Context) ([]Receipt, error) {
	return e.store.ListReceipts(ctx)
}

// SetPolicy changes settlement policy. Once a settlement has happened, the
// percentage and treasury address are immutable except through an
// elevated-authorization change — this is the one karma operation that
// does propagate an error, since a policy change is an explicit operator
// action, not a trading side effect.
func (e *Engine) SetPolicy(ctx context.Context, p Policy, elevated bool) error {
	e.mu.Lock()
	settled := e.settledOnce
	e.mu.Unlock()

	if settled && !elevated {
		return ErrPolicyImmutable
	}

	if err := e.store.SavePolicy(ctx, p); err != nil {
		return err
	}
	if _, err := e.es.Append(ctx, eventstore.KindKarmaPolicyChange, p); err != nil {
		return err
	}

	e.mu.Lock()
	e.policy = p
	e.mu.Unlock()
	return nil
}

func (e *Engine) sign(parts ...interface{}) (signature, keyID string, err error) {
	b, err := canonicalize.JCS(parts)
	if err != nil {
		return "", "", err
	}
	sig, err := e.signer.Sign(b)
	if err != nil {
		return "", "", err
	}
	return sig, e.signer.PublicKey(), nil
}
