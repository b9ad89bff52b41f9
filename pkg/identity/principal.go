package identity

// PrincipalType distinguishes the kind of actor a token was issued to.
type PrincipalType string

const (
	// PrincipalOperator is the node operator — the only role that can hold
	// elevated authorization (kill-switch de-escalate, karma policy change).
	PrincipalOperator PrincipalType = "operator"
	// PrincipalAgent is an automated signal producer.
	PrincipalAgent PrincipalType = "agent"
	// PrincipalCurator reviews and curates signal submissions.
	PrincipalCurator PrincipalType = "curator"
	// PrincipalTester submits signals under a rate-limited test role.
	PrincipalTester PrincipalType = "tester"
)

// Principal is anything a token can be issued to.
type Principal interface {
	ID() string
	Type() PrincipalType
}

// OperatorIdentity is the sovereign node operator.
type OperatorIdentity struct {
	OperatorID string
	// Elevated marks a token request as carrying the separate elevated
	// capability required to de-escalate the kill switch or change karma
	// settlement policy. Compromise of a non-elevated operator token must
	// not be sufficient to mint an elevated one.
	Elevated bool
}

func (o *OperatorIdentity) ID() string         { return o.OperatorID }
func (o *OperatorIdentity) Type() PrincipalType { return PrincipalOperator }

// ContributorIdentity is a registered signal contributor (agent, curator, or
// tester role). ContributorID is the ID the contributor was registered
// under.
type ContributorIdentity struct {
	ContributorID string
	Role          PrincipalType
}

func (c *ContributorIdentity) ID() string         { return c.ContributorID }
func (c *ContributorIdentity) Type() PrincipalType { return c.Role }
