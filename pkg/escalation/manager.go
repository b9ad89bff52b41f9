// Package escalation provides the Elevated Authorization Manager — the
// runtime engine that gates operations requiring human approval above the
// normal authority level: kill-switch de-escalation and karma settlement
// policy changes. It creates intents, tracks their lifecycle, handles
// timeouts, and produces immutable, content-hashed receipts.
package escalation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/P-U-C/b1e55ed/pkg/escalation/ceremony"
)

// ErrCeremonyRejected is returned by ApproveWithCeremony when the submitted
// approval interaction doesn't satisfy the manager's ceremony policy.
var ErrCeremonyRejected = errors.New("escalation: approval ceremony requirements not met")

// Kind identifies what an intent is requesting elevated authorization for.
type Kind string

const (
	KindKillSwitchDeescalate Kind = "KILL_SWITCH_DEESCALATE"
	KindKarmaPolicyChange    Kind = "KARMA_POLICY_CHANGE"
)

// Status is the lifecycle state of an Intent.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDenied   Status = "DENIED"
	StatusTimedOut Status = "TIMED_OUT"
)

// ApprovalSpec describes who may approve an intent and the fallback if
// nobody does in time.
type ApprovalSpec struct {
	ApproverRoles  []string `json:"approver_roles"`
	Quorum         int      `json:"quorum"`
	TimeoutSeconds int64    `json:"timeout_seconds"`
	OnTimeout      string   `json:"on_timeout"` // "deny" | "deny-and-hold"
}

// Intent is a request for elevated authorization, awaiting one or more
// human approvals before the gated operation may proceed.
type Intent struct {
	IntentID    string                 `json:"intent_id"`
	Kind        Kind                   `json:"kind"`
	RequestedBy string                 `json:"requested_by"`
	Reason      string                 `json:"reason"`
	Payload     map[string]interface{} `json:"payload"` // e.g. target level, new policy fields
	Approval    ApprovalSpec           `json:"approval"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Status      Status                 `json:"status"`
	Approvers   []string               `json:"approvers,omitempty"`
}

// Receipt is the immutable, content-hashed outcome of resolving an Intent.
type Receipt struct {
	ReceiptID   string    `json:"receipt_id"`
	IntentID    string    `json:"intent_id"`
	Outcome     Status    `json:"outcome"`
	ApprovedBy  []string  `json:"approved_by,omitempty"`
	DeniedBy    string    `json:"denied_by,omitempty"`
	DenyReason  string    `json:"deny_reason,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
	DurationMs  int64     `json:"duration_ms"`
	ContentHash string    `json:"content_hash"`
}

// Manager handles the lifecycle of elevated-authorization intents.
type Manager struct {
	mu       sync.Mutex
	intents  map[string]*Intent
	clock    func() time.Time
	ceremony ceremony.CeremonyPolicy
}

// NewManager creates a new escalation manager. Approvals made through
// ApproveWithCeremony are checked against ceremony.StrictPolicy by
// default — a bare approver signature is not enough to clear an intent
// this manager gates; the approver must also have sat through the
// policy's minimum timelock and hold, and supply a challenge/response.
func NewManager() *Manager {
	return &Manager{
		intents:  make(map[string]*Intent),
		clock:    time.Now,
		ceremony: ceremony.StrictPolicy(),
	}
}

// WithClock overrides the clock for deterministic testing.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithCeremonyPolicy overrides the ceremony policy ApproveWithCeremony
// validates against.
func (m *Manager) WithCeremonyPolicy(policy ceremony.CeremonyPolicy) *Manager {
	m.ceremony = policy
	return m
}

// defaultApproval is used when the caller doesn't override quorum/timeout.
func defaultApproval() ApprovalSpec {
	return ApprovalSpec{
		ApproverRoles:  []string{"operator"},
		Quorum:         1,
		TimeoutSeconds: 300,
		OnTimeout:      "deny",
	}
}

// CreateIntent opens a new elevated-authorization request.
func (m *Manager) CreateIntent(ctx context.Context, kind Kind, requestedBy, reason string, payload map[string]interface{}, approval *ApprovalSpec) (*Intent, error) {
	_ = ctx
	now := m.clock()

	spec := defaultApproval()
	if approval != nil {
		if len(approval.ApproverRoles) > 0 {
			spec.ApproverRoles = approval.ApproverRoles
		}
		if approval.Quorum > 0 {
			spec.Quorum = approval.Quorum
		}
		if approval.TimeoutSeconds > 0 {
			spec.TimeoutSeconds = approval.TimeoutSeconds
		}
		if approval.OnTimeout != "" {
			spec.OnTimeout = approval.OnTimeout
		}
	}

	intent := &Intent{
		IntentID:    uuid.New().String(),
		Kind:        kind,
		RequestedBy: requestedBy,
		Reason:      reason,
		Payload:     payload,
		Approval:    spec,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(spec.TimeoutSeconds) * time.Second),
		Status:      StatusPending,
	}

	m.mu.Lock()
	m.intents[intent.IntentID] = intent
	m.mu.Unlock()

	return intent, nil
}

// Approve records an approval. Quorum is satisfied once distinct approvers
// reach the required count; until then the intent stays PENDING.
func (m *Manager) Approve(ctx context.Context, intentID, approverID string) (*Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation intent %q not found", intentID)
	}
	if intent.Status != StatusPending {
		return nil, fmt.Errorf("escalation intent %q is not PENDING (status=%s)", intentID, intent.Status)
	}

	now := m.clock()
	if now.After(intent.ExpiresAt) {
		intent.Status = StatusTimedOut
		return m.createReceipt(intent, now), nil
	}

	for _, a := range intent.Approvers {
		if a == approverID {
			return nil, fmt.Errorf("approver %q has already approved intent %q", approverID, intentID)
		}
	}
	intent.Approvers = append(intent.Approvers, approverID)

	if len(intent.Approvers) < intent.Approval.Quorum {
		receipt := m.createReceipt(intent, now)
		receipt.Outcome = StatusPending
		receipt.ApprovedBy = intent.Approvers
		return receipt, nil
	}

	intent.Status = StatusApproved
	receipt := m.createReceipt(intent, now)
	receipt.ApprovedBy = intent.Approvers
	return receipt, nil
}

// ApproveWithCeremony validates req against the manager's ceremony policy
// — minimum timelock, minimum hold time, UI-summary and signature
// presence, and challenge/response if the policy requires it — before
// recording the approval through Approve. A rejected ceremony leaves the
// intent untouched: the approver gets another chance rather than burning
// their one vote on a malformed submission.
func (m *Manager) ApproveWithCeremony(ctx context.Context, intentID, approverID string, req ceremony.CeremonyRequest) (*Receipt, error) {
	result := ceremony.ValidateCeremony(m.ceremony, req)
	if !result.Valid {
		return nil, fmt.Errorf("%w: intent %q: %s", ErrCeremonyRejected, intentID, result.Reason)
	}
	return m.Approve(ctx, intentID, approverID)
}

// Deny denies an escalation intent outright, regardless of quorum.
func (m *Manager) Deny(ctx context.Context, intentID, denierID, reason string) (*Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation intent %q not found", intentID)
	}
	if intent.Status != StatusPending {
		return nil, fmt.Errorf("escalation intent %q is not PENDING (status=%s)", intentID, intent.Status)
	}

	intent.Status = StatusDenied
	receipt := m.createReceipt(intent, m.clock())
	receipt.DeniedBy = denierID
	receipt.DenyReason = reason
	return receipt, nil
}

// CheckTimeouts scans pending intents and resolves any that have expired.
func (m *Manager) CheckTimeouts(ctx context.Context) ([]*Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var receipts []*Receipt

	for _, intent := range m.intents {
		if intent.Status != StatusPending {
			continue
		}
		if now.After(intent.ExpiresAt) {
			intent.Status = StatusTimedOut
			receipts = append(receipts, m.createReceipt(intent, now))
		}
	}
	return receipts, nil
}

// GetIntent returns an intent by ID.
func (m *Manager) GetIntent(intentID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("escalation intent %q not found", intentID)
	}
	return intent, nil
}

// PendingCount returns the number of pending escalations.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, intent := range m.intents {
		if intent.Status == StatusPending {
			count++
		}
	}
	return count
}

func (m *Manager) createReceipt(intent *Intent, resolvedAt time.Time) *Receipt {
	durationMs := resolvedAt.Sub(intent.CreatedAt).Milliseconds()

	receipt := &Receipt{
		ReceiptID:  uuid.New().String(),
		IntentID:   intent.IntentID,
		Outcome:    intent.Status,
		ResolvedAt: resolvedAt,
		DurationMs: durationMs,
	}

	hashable := struct {
		IntentID string `json:"intent_id"`
		Outcome  Status `json:"outcome"`
	}{
		IntentID: intent.IntentID,
		Outcome:  intent.Status,
	}
	data, _ := json.Marshal(hashable)
	h := sha256.Sum256(data)
	receipt.ContentHash = "sha256:" + hex.EncodeToString(h[:])

	return receipt
}
