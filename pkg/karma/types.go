// Package karma implements the two-phase settlement flow that routes a
// configurable share of realized LIVE-mode trading profit to a treasury
// address: an Intent recorded the moment a profitable position closes, and
// a Settlement recorded once the operator actually moves funds. Karma is
// off by default and record_intent/settle never raise — nothing in this
// package may ever be the reason a trade fails to close.
package karma

import (
	"time"

	"github.com/P-U-C/b1e55ed/pkg/finance"
)

// Status is the lifecycle state of an Intent.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSettled Status = "SETTLED"
)

// Intent is recorded the moment a LIVE-mode position closes at a realized
// profit. It is never recorded for a loss or for a paper-mode close —
// paper PnL must never create a real settlement obligation.
type Intent struct {
	IntentID         string    `json:"intent_id"`
	TradeID          string    `json:"trade_id"`
	RealizedPnL      finance.Money `json:"realized_pnl"`
	Amount           finance.Money `json:"amount"` // RealizedPnL * policy percentage at record time
	TreasuryAddress  string    `json:"treasury_address"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	SignerKeyID      string    `json:"signer_key_id"`
	Signature        string    `json:"signature"`
}

// Settlement is the atomic outcome of settling one or more Intents against
// a single on-chain (or off-chain ledger) transaction.
type Settlement struct {
	SettlementID string    `json:"settlement_id"`
	IntentIDs    []string  `json:"intent_ids"`
	TxHash       string    `json:"tx_hash"`
	TotalAmount  finance.Money `json:"total_amount"`
	SettledAt    time.Time `json:"settled_at"`
}

// Receipt is the immutable, signed attestation that a Settlement happened,
// supplementing the core settlement event — the Python reference this was
// built from emits both a settlement record and a separately signed
// receipt, and this repo keeps that split rather than collapsing it into
// one event.
type Receipt struct {
	ReceiptID    string    `json:"receipt_id"`
	SettlementID string    `json:"settlement_id"`
	IntentIDs    []string  `json:"intent_ids"`
	TxHash       string    `json:"tx_hash"`
	TotalAmount  finance.Money `json:"total_amount"`
	IssuedAt     time.Time `json:"issued_at"`
	SignerKeyID  string    `json:"signer_key_id"`
	Signature    string    `json:"signature"`
}

// Policy is the settlement configuration. Percentage and TreasuryAddress
// become immutable the moment the first Settlement happens, unless changed
// through an elevated-authorization karma.policy_change.v1 event.
type Policy struct {
	Enabled         bool    `json:"enabled"`
	Percentage      float64 `json:"percentage"` // fraction of realized profit, e.g. 0.05
	TreasuryAddress string  `json:"treasury_address"`
}

// active reports whether karma is actually in effect — both enabled and a
// nonzero percentage must hold, mirroring the reference's enabled property.
func (p Policy) active() bool {
	return p.Enabled && p.Percentage > 0
}
