package governance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"
)

// PolicyVerdict is the outcome of evaluating a CEL-expressed threshold
// policy against a cycle's metrics (PCS, CTS, conviction, regime, ...).
type PolicyVerdict struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PolicyID  string    `json:"policy_id"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
}

// PolicyEngine is the single point of truth for threshold/gating decisions
// that are cheaper to express as data than as compiled Go: conviction
// floors, weight-clamp bounds, regime-conditioned gates. Each policy is a
// CEL boolean expression evaluated against the cycle's metric snapshot.
type PolicyEngine struct {
	mu          sync.RWMutex
	env         *cel.Env
	policySet   map[string]cel.Program
	definitions map[string]string // ID -> CEL Source
}

// NewPolicyEngine initializes the CEL environment with the metric
// attributes every brain-cycle policy is evaluated against.
func NewPolicyEngine() (*PolicyEngine, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("regime", types.StringType),
			decls.NewVariable("pcs", types.DoubleType),
			decls.NewVariable("cts", types.DoubleType),
			decls.NewVariable("conviction", types.DoubleType),
			decls.NewVariable("kill_switch_level", types.StringType),
			decls.NewVariable("context", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &PolicyEngine{
		env:         env,
		policySet:   make(map[string]cel.Program),
		definitions: make(map[string]string),
	}, nil
}

// LoadPolicy compiles and registers a policy.
func (pe *PolicyEngine) LoadPolicy(policyID, source string) error {
	pe.mu.Lock()
	defer pe.mu.Unlock()

	ast, issues := pe.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("policy compilation failed: %w", issues.Err())
	}

	prg, err := pe.env.Program(ast)
	if err != nil {
		return fmt.Errorf("program construction failed: %w", err)
	}

	pe.policySet[policyID] = prg
	pe.definitions[policyID] = source
	return nil
}

// ListDefinitions returns a copy of all loaded policy definitions (ID → source).
func (pe *PolicyEngine) ListDefinitions() map[string]string {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	out := make(map[string]string, len(pe.definitions))
	for k, v := range pe.definitions {
		out[k] = v
	}
	return out
}

// Metrics is the input snapshot a policy is evaluated against.
type Metrics struct {
	Regime          string
	PCS             float64
	CTS             float64
	Conviction      float64
	KillSwitchLevel string
	Context         map[string]interface{}
}

// Evaluate checks a metric snapshot against a named policy. An unknown
// policy ID or a CEL evaluation error both fail closed (Allowed=false).
func (pe *PolicyEngine) Evaluate(ctx context.Context, policyID string, m Metrics) (*PolicyVerdict, error) {
	_ = ctx
	pe.mu.RLock()
	defer pe.mu.RUnlock()

	verdict := &PolicyVerdict{
		ID:        fmt.Sprintf("verdict-%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		PolicyID:  policyID,
		Allowed:   false,
	}

	if policyID == "" {
		verdict.Reason = "no policy specified"
		return verdict, nil
	}

	prg, exists := pe.policySet[policyID]
	if !exists {
		verdict.Reason = fmt.Sprintf("policy %s not found", policyID)
		return verdict, nil
	}

	input := map[string]interface{}{
		"regime":            m.Regime,
		"pcs":               m.PCS,
		"cts":               m.CTS,
		"conviction":        m.Conviction,
		"kill_switch_level": m.KillSwitchLevel,
		"context":           m.Context,
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		verdict.Reason = fmt.Sprintf("evaluation error: %v", err)
		return verdict, nil // fail closed
	}

	if allowed, ok := out.Value().(bool); ok && allowed {
		verdict.Allowed = true
		verdict.Reason = fmt.Sprintf("allowed by policy %s", policyID)
	} else {
		verdict.Reason = fmt.Sprintf("denied by policy %s", policyID)
	}
	return verdict, nil
}
