package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/escalation/ceremony"
)

func testPayload() map[string]interface{} {
	return map[string]interface{}{
		"target_level": "L1_CAUTION",
		"current_level": "L3_CRITICAL",
	}
}

func TestCreateIntent(t *testing.T) {
	mgr := NewManager()

	intent, err := mgr.CreateIntent(
		context.Background(),
		KindKillSwitchDeescalate,
		"operator-1",
		"drawdown recovered, clearing to caution",
		testPayload(),
		nil,
	)
	if err != nil {
		t.Fatal(err)
	}
	if intent.IntentID == "" {
		t.Fatal("expected intent ID")
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", intent.Status)
	}
	if intent.Payload["target_level"] != "L1_CAUTION" {
		t.Fatal("expected target_level L1_CAUTION")
	}
	if mgr.PendingCount() != 1 {
		t.Fatalf("expected 1 pending, got %d", mgr.PendingCount())
	}
}

func TestApproveIntent(t *testing.T) {
	mgr := NewManager()

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	receipt, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", receipt.Outcome)
	}
	if receipt.ApprovedBy[0] != "admin-001" {
		t.Fatal("expected admin-001")
	}
	if receipt.ContentHash == "" {
		t.Fatal("expected content hash")
	}
	if mgr.PendingCount() != 0 {
		t.Fatalf("expected 0 pending, got %d", mgr.PendingCount())
	}
}

func TestApproveIntent_RequiresQuorum(t *testing.T) {
	mgr := NewManager()

	intent, _ := mgr.CreateIntent(context.Background(), KindKarmaPolicyChange, "operator-1", "raise settlement cap", testPayload(),
		&ApprovalSpec{ApproverRoles: []string{"operator", "curator"}, Quorum: 2, TimeoutSeconds: 600, OnTimeout: "deny"})

	receipt, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusPending {
		t.Fatalf("expected still PENDING after first of 2 approvals, got %s", receipt.Outcome)
	}
	if mgr.PendingCount() != 1 {
		t.Fatal("intent should remain pending until quorum reached")
	}

	receipt, err = mgr.Approve(context.Background(), intent.IntentID, "admin-002")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusApproved {
		t.Fatalf("expected APPROVED after quorum reached, got %s", receipt.Outcome)
	}
}

func TestApproveIntent_RejectsDuplicateApprover(t *testing.T) {
	mgr := NewManager()
	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(),
		&ApprovalSpec{Quorum: 2, TimeoutSeconds: 300})

	if _, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001"); err == nil {
		t.Fatal("expected error approving twice with the same approver")
	}
}

func TestDenyIntent(t *testing.T) {
	mgr := NewManager()

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	receipt, err := mgr.Deny(context.Background(), intent.IntentID, "admin-002", "Too risky")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusDenied {
		t.Fatalf("expected DENIED, got %s", receipt.Outcome)
	}
	if receipt.DeniedBy != "admin-002" {
		t.Fatal("expected admin-002")
	}
	if receipt.DenyReason != "Too risky" {
		t.Fatal("expected reason")
	}
}

func TestTimeoutIntent(t *testing.T) {
	now := time.Now()
	elapsed := int64(0)
	mgr := NewManager().WithClock(func() time.Time {
		return now.Add(time.Duration(elapsed) * time.Second)
	})

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	elapsed = 301

	receipts, err := mgr.CheckTimeouts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected 1 timed-out receipt, got %d", len(receipts))
	}
	if receipts[0].Outcome != StatusTimedOut {
		t.Fatalf("expected TIMED_OUT, got %s", receipts[0].Outcome)
	}

	updated, _ := mgr.GetIntent(intent.IntentID)
	if updated.Status != StatusTimedOut {
		t.Fatalf("expected intent status TIMED_OUT, got %s", updated.Status)
	}
}

func TestDoubleApproveRejected(t *testing.T) {
	mgr := NewManager()

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	_, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001")
	if err != nil {
		t.Fatal(err)
	}

	_, err = mgr.Approve(context.Background(), intent.IntentID, "admin-002")
	if err == nil {
		t.Fatal("expected error on approving an already-resolved intent")
	}
}

func TestApproveWithCeremony_RejectsShortTimelock(t *testing.T) {
	mgr := NewManager() // defaults to ceremony.StrictPolicy()

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	req := ceremony.CeremonyRequest{
		DecisionID:    intent.IntentID,
		TimelockMs:    100, // below StrictPolicy's MinTimelockMs
		HoldMs:        5000,
		UISummaryHash: "sha256:deadbeef",
		ChallengeHash: "sha256:challenge",
		ResponseHash:  "sha256:response",
		Signature:     "sig",
	}

	_, err := mgr.ApproveWithCeremony(context.Background(), intent.IntentID, "admin-001", req)
	if !errors.Is(err, ErrCeremonyRejected) {
		t.Fatalf("expected ErrCeremonyRejected, got %v", err)
	}
	if mgr.PendingCount() != 1 {
		t.Fatal("a rejected ceremony must not consume the intent's pending vote")
	}
}

func TestApproveWithCeremony_AcceptsCompleteCeremony(t *testing.T) {
	mgr := NewManager()

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	req := ceremony.CeremonyRequest{
		DecisionID:    intent.IntentID,
		TimelockMs:    6000,
		HoldMs:        4000,
		UISummaryHash: "sha256:deadbeef",
		ChallengeHash: "sha256:challenge",
		ResponseHash:  "sha256:response",
		Signature:     "sig",
	}

	receipt, err := mgr.ApproveWithCeremony(context.Background(), intent.IntentID, "admin-001", req)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", receipt.Outcome)
	}
}

func TestApproveWithCeremony_CustomPolicyOverridesDefault(t *testing.T) {
	mgr := NewManager().WithCeremonyPolicy(ceremony.DefaultPolicy())

	intent, _ := mgr.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	req := ceremony.CeremonyRequest{
		DecisionID:    intent.IntentID,
		TimelockMs:    2500,
		HoldMs:        1200,
		UISummaryHash: "sha256:deadbeef",
		Signature:     "sig",
	}

	if _, err := mgr.ApproveWithCeremony(context.Background(), intent.IntentID, "admin-001", req); err != nil {
		t.Fatalf("expected DefaultPolicy (no challenge required) to accept, got %v", err)
	}
}

func TestApproveExpiredReturnsTimeout(t *testing.T) {
	now := time.Now()
	mgr := NewManager().WithClock(func() time.Time {
		return now.Add(400 * time.Second) // past the 300s default timeout
	})

	mgr2 := NewManager()
	intent, _ := mgr2.CreateIntent(context.Background(), KindKillSwitchDeescalate, "operator-1", "recovered", testPayload(), nil)

	mgr.mu.Lock()
	mgr.intents[intent.IntentID] = intent
	mgr.mu.Unlock()

	receipt, err := mgr.Approve(context.Background(), intent.IntentID, "admin-001")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Outcome != StatusTimedOut {
		t.Fatalf("expected TIMED_OUT for expired approval, got %s", receipt.Outcome)
	}
}
