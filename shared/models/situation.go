package models

import "fmt"

// Situation is the lifecycle state of a transaction. The string values are
// the ones exchanged with the other services on the bus.
type Situation string

const (
	SituationUnanalyzed   Situation = "NAO_ANALISADA"
	SituationAnalyzed     Situation = "ANALISADA"
	SituationRejected     Situation = "REJEITADA"
	SituationFraudSuspect Situation = "EM_SUSPEITA_FRAUDE"
	SituationHumanReview  Situation = "EM_ANALISE_HUMANA"
	SituationApproved     Situation = "APROVADA"
)

// Situations lists every defined state.
var Situations = []Situation{
	SituationUnanalyzed,
	SituationAnalyzed,
	SituationRejected,
	SituationFraudSuspect,
	SituationHumanReview,
	SituationApproved,
}

func (s Situation) Valid() bool {
	for _, v := range Situations {
		if s == v {
			return true
		}
	}
	return false
}

// Final reports whether no named operation leads out of s.
func (s Situation) Final() bool {
	return s == SituationApproved || s == SituationRejected
}

func (s Situation) String() string { return string(s) }

func (s *Situation) UnmarshalText(text []byte) error {
	v, err := ParseSituation(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSituation(value string) (Situation, error) {
	s := Situation(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown situation %q", value)
	}
	return s, nil
}

// TransitionPolicy decides whether a transaction may move between two
// situations.
type TransitionPolicy int

const (
	// Permissive allows every state to move to every other state.
	Permissive TransitionPolicy = iota
	// Guarded refuses to leave APPROVED or REJECTED.
	Guarded
)

// TransitionError is returned by Check when the policy refuses a move.
type TransitionError struct {
	From Situation
	To   Situation
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %s to %s is not allowed", e.From, e.To)
}

func (p TransitionPolicy) Check(from, to Situation) error {
	if !to.Valid() {
		return fmt.Errorf("unknown situation %q", string(to))
	}
	if p == Guarded && from.Final() && from != to {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Transition moves t to the requested situation if the policy allows it.
func (t *Transaction) Transition(to Situation, policy TransitionPolicy) error {
	if err := policy.Check(t.Situation, to); err != nil {
		return err
	}
	t.Situation = to
	return nil
}

// Action names a transition operation exposed over HTTP.
type Action string

const (
	ActionReset   Action = "reset"
	ActionAnalyze Action = "analyze"
	ActionReject  Action = "reject"
	ActionFraud   Action = "fraud"
	ActionReview  Action = "review"
	ActionApprove Action = "approve"
)

// Target returns the situation an action leads to.
func (a Action) Target() (Situation, bool) {
	switch a {
	case ActionReset:
		return SituationUnanalyzed, true
	case ActionAnalyze:
		return SituationAnalyzed, true
	case ActionReject:
		return SituationRejected, true
	case ActionFraud:
		return SituationFraudSuspect, true
	case ActionReview:
		return SituationHumanReview, true
	case ActionApprove:
		return SituationApproved, true
	}
	return "", false
}
