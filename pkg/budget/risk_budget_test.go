package budget

import (
	"testing"
	"time"
)

func testBudget() *RiskBudget {
	return &RiskBudget{
		PortfolioHeatCap: 500.0,
		BlastRadiusCap:   100,
		DrawdownCap:      0.30,
		AutonomyLevel:    80,
		UncertaintyScore: 0.2,
	}
}

func TestRiskCheckAllowed(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget())

	d := e.CheckRisk(RiskLow, 10.0, 5)
	if !d.Allowed {
		t.Fatalf("expected allowed, got: %s", d.Reason)
	}
	if d.RiskCost != 10.0 {
		t.Fatalf("expected risk cost 10.0, got %.1f", d.RiskCost)
	}
}

func TestRiskCheckWeighted(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget())

	d := e.CheckRisk(RiskHigh, 10.0, 5)
	if !d.Allowed {
		t.Fatalf("expected allowed, got: %s", d.Reason)
	}
	if d.RiskCost != 50.0 { // 10 * 5.0 (HIGH weight)
		t.Fatalf("expected risk cost 50.0, got %.1f", d.RiskCost)
	}
}

func TestPortfolioHeatExceeded(t *testing.T) {
	e := NewRiskEnforcer()
	b := testBudget()
	b.PortfolioHeatCap = 20.0
	e.SetBudget(b)

	d := e.CheckRisk(RiskHigh, 10.0, 5) // 10 * 5.0 = 50 > 20
	if d.Allowed {
		t.Fatal("expected portfolio heat exceeded denial")
	}
}

func TestBlastRadiusExceeded(t *testing.T) {
	e := NewRiskEnforcer()
	b := testBudget()
	b.BlastRadiusCap = 3
	e.SetBudget(b)

	d := e.CheckRisk(RiskLow, 1.0, 5)
	if d.Allowed {
		t.Fatal("expected blast radius exceeded denial")
	}
}

func TestReleaseRisk(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget())

	e.CheckRisk(RiskMedium, 10.0, 3) // heat 20, blast 3
	e.ReleaseRisk(RiskMedium, 10.0, 3)

	b, err := e.GetBudget()
	if err != nil {
		t.Fatalf("GetBudget failed: %v", err)
	}
	if b.PortfolioHeatUsed != 0 {
		t.Fatalf("expected heat released to 0, got %.1f", b.PortfolioHeatUsed)
	}
	if b.BlastRadiusUsed != 0 {
		t.Fatalf("expected blast radius released to 0, got %d", b.BlastRadiusUsed)
	}
}

func TestRecordDrawdownExceeded(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget()) // cap 0.30

	if e.RecordDrawdown(0.15) {
		t.Fatal("expected drawdown within cap")
	}
	if !e.RecordDrawdown(0.31) {
		t.Fatal("expected drawdown cap exceeded")
	}
}

func TestAutonomyShrink(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget()) // AutonomyLevel=80, uncertainty=0.2

	d := e.ShrinkAutonomy(0.5) // uncertainty -> 0.7
	if !d.AutonomyShrunk {
		t.Fatal("expected autonomy to shrink")
	}
	if d.NewAutonomyLevel >= 80 {
		t.Fatalf("expected lower autonomy, got %d", d.NewAutonomyLevel)
	}
}

func TestAutonomyShrinkToZero(t *testing.T) {
	e := NewRiskEnforcer()
	b := testBudget()
	b.UncertaintyScore = 0.0
	b.AutonomyLevel = 100
	e.SetBudget(b)

	d := e.ShrinkAutonomy(1.0) // uncertainty -> 1.0
	if d.NewAutonomyLevel != 0 {
		t.Fatalf("expected autonomy 0 at max uncertainty, got %d", d.NewAutonomyLevel)
	}
}

func TestIsAutonomousAllowed(t *testing.T) {
	e := NewRiskEnforcer()
	e.SetBudget(testBudget()) // AutonomyLevel=80

	if !e.IsAutonomousAllowed(RiskLow) {
		t.Fatal("expected LOW risk allowed at autonomy 80")
	}
	if !e.IsAutonomousAllowed(RiskMedium) {
		t.Fatal("expected MEDIUM risk allowed at autonomy 80")
	}
	if !e.IsAutonomousAllowed(RiskHigh) {
		t.Fatal("expected HIGH risk allowed at autonomy 80")
	}
	if e.IsAutonomousAllowed(RiskCritical) {
		t.Fatal("expected CRITICAL risk denied regardless of autonomy")
	}
}

func TestFailClosedNoBudget(t *testing.T) {
	e := NewRiskEnforcer()

	d := e.CheckRisk(RiskLow, 1.0, 1)
	if d.Allowed {
		t.Fatal("expected fail-closed without budget")
	}

	if e.IsAutonomousAllowed(RiskLow) {
		t.Fatal("expected fail-closed without budget")
	}
}

func TestRiskBudgetReservation(t *testing.T) {
	e := NewRiskEnforcer()
	b := testBudget()
	b.PortfolioHeatCap = 100.0
	e.SetBudget(b)

	// Two LOW risk actions of 40 each = 80 total, should fit
	d1 := e.CheckRisk(RiskLow, 40.0, 1)
	if !d1.Allowed {
		t.Fatal("first action should be allowed")
	}
	d2 := e.CheckRisk(RiskLow, 40.0, 1)
	if !d2.Allowed {
		t.Fatal("second action should be allowed")
	}
	// Third would exceed: 80 + 40 = 120 > 100
	d3 := e.CheckRisk(RiskLow, 40.0, 1)
	if d3.Allowed {
		t.Fatal("third action should be denied (120 > 100)")
	}
}

func TestRiskEnforcer_WithClockAndGetBudget_IsReachable(t *testing.T) {
	e := NewRiskEnforcer().WithClock(func() time.Time { return time.Unix(0, 0).UTC() })
	e.SetBudget(testBudget())

	b, err := e.GetBudget()
	if err != nil {
		t.Fatalf("GetBudget failed: %v", err)
	}
	if b.PortfolioHeatCap != 500.0 {
		t.Fatalf("unexpected portfolio heat cap %.1f", b.PortfolioHeatCap)
	}
}
