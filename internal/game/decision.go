package game

import (
	"encoding/json"
)

// Context keys attached to pending decisions for display and bots.
const (
	CtxActionName   = "action_name"
	CtxClaimedCard  = "claimed_card"
	CtxBlockCard    = "block_card"
	CtxActorName    = "actor_name"
	CtxAttackerName = "attacker_name"
	CtxAttackerIdx  = "attacker_idx"
	CtxBlockerName  = "blocker_name"
	CtxDoubterName  = "doubter_name"
	CtxCardName     = "card_name"
	CtxContext      = "context"
)

// PendingDecision is the single question the engine is waiting on: which
// player must answer, what kind of question it is and which answers are legal.
type PendingDecision struct {
	PlayerIndex int
	Kind        DecisionKind
	Options     []Choice
	Context     map[string]any
}

// Allows reports whether choice is one of the offered options.
func (d PendingDecision) Allows(choice Choice) bool {
	if choice == nil || choice.Kind() != d.Kind {
		return false
	}
	for _, opt := range d.Options {
		if opt == choice {
			return true
		}
	}
	return false
}

// OptionValues returns the wire form of the options.
func (d PendingDecision) OptionValues() []any {
	values := make([]any, len(d.Options))
	for i, opt := range d.Options {
		values[i] = opt.Value()
	}
	return values
}

// ContextString returns a string context entry, or "" when absent.
func (d PendingDecision) ContextString(key string) string {
	s, _ := d.Context[key].(string)
	return s
}

// DecisionView is the serialisable form of a PendingDecision.
type DecisionView struct {
	PlayerIndex  int            `json:"player_index"`
	DecisionType DecisionKind   `json:"decision_type"`
	Options      []any          `json:"options"`
	Context      map[string]any `json:"context"`
}

// View converts the decision to its wire representation.
func (d PendingDecision) View() DecisionView {
	ctx := make(map[string]any, len(d.Context))
	for k, v := range d.Context {
		ctx[k] = v
	}
	return DecisionView{
		PlayerIndex:  d.PlayerIndex,
		DecisionType: d.Kind,
		Options:      d.OptionValues(),
		Context:      ctx,
	}
}

// MarshalJSON encodes the decision with primitive options.
func (d PendingDecision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.View())
}
