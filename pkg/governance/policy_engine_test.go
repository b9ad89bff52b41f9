package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyEngine_Evaluation(t *testing.T) {
	pe, err := NewPolicyEngine()
	require.NoError(t, err)

	src := `conviction >= 0.6 && regime != "CRISIS"`
	err = pe.LoadPolicy("min-conviction", src)
	require.NoError(t, err)

	allowed := Metrics{Regime: "TRENDING", Conviction: 0.8}
	dec, err := pe.Evaluate(context.Background(), "min-conviction", allowed)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Contains(t, dec.Reason, "allowed by policy")

	denied := Metrics{Regime: "CRISIS", Conviction: 0.9}
	dec, err = pe.Evaluate(context.Background(), "min-conviction", denied)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Reason, "denied by policy")

	dec, err = pe.Evaluate(context.Background(), "missing-policy", allowed)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Reason, "not found")

	dec, err = pe.Evaluate(context.Background(), "", allowed)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Reason, "no policy specified")

	defs := pe.ListDefinitions()
	assert.Equal(t, src, defs["min-conviction"])
}

func TestPolicyEngine_CompilationError(t *testing.T) {
	pe, err := NewPolicyEngine()
	require.NoError(t, err)

	err = pe.LoadPolicy("bad", "invalid syntax ((")
	assert.Error(t, err)
}
