package rules

import (
	"fmt"
	"strings"
)

// Action is one of the closed set of turn actions. Every method switches over
// the full set and panics on an unknown value, so adding an action forces each
// rule to be revisited.
type Action int

const (
	Income Action = iota + 1
	ForeignAid
	Tax
	Steal
	Assassinate
	Coup
)

var actionNames = map[Action]string{
	Income:      "income",
	ForeignAid:  "foreign_aid",
	Tax:         "tax",
	Steal:       "steal",
	Assassinate: "assassinate",
	Coup:        "coup",
}

const (
	// ForcedCoupThreshold is the coin count at which Coup becomes mandatory.
	ForcedCoupThreshold = 10
	// MaxSteal is the most coins a single steal can take.
	MaxSteal = 2
)

// AllActions returns every action in menu order.
func AllActions() []Action {
	return []Action{Income, ForeignAid, Tax, Steal, Assassinate, Coup}
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ACTION_%d", int(a))
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// ParseAction resolves an action identifier such as "foreign_aid".
func ParseAction(id string) (Action, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for a, name := range actionNames {
		if name == id {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", id)
}

// MarshalText encodes the action by identifier.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("unknown action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action identifier.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Cost is the number of coins paid when the action is declared. It is never
// refunded.
func (a Action) Cost() int {
	switch a {
	case Income, ForeignAid, Tax, Steal:
		return 0
	case Assassinate:
		return 3
	case Coup:
		return 7
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// CanUse reports whether a player holding coins may declare the action.
func (a Action) CanUse(coins int) bool {
	return coins >= a.Cost()
}

// RequiresTarget reports whether the action is aimed at another player.
func (a Action) RequiresTarget() bool {
	switch a {
	case Income, ForeignAid, Tax:
		return false
	case Steal, Assassinate, Coup:
		return true
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// Challengeable reports whether the action claims a card that can be doubted.
func (a Action) Challengeable() bool {
	_, ok := a.ClaimedCard()
	return ok
}

// OpenBlockable reports whether any other player, not just a target, may
// claim a block.
func (a Action) OpenBlockable() bool {
	switch a {
	case ForeignAid:
		return true
	case Income, Tax, Steal, Assassinate, Coup:
		return false
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// CausesInfluenceLoss reports whether success makes the target lose an
// influence. Such actions have no coin effect.
func (a Action) CausesInfluenceLoss() bool {
	switch a {
	case Assassinate, Coup:
		return true
	case Income, ForeignAid, Tax, Steal:
		return false
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// ClaimedCard returns the card the actor claims to hold, if any.
func (a Action) ClaimedCard() (Card, bool) {
	switch a {
	case Tax:
		return Duke, true
	case Steal:
		return Captain, true
	case Assassinate:
		return Assassin, true
	case Income, ForeignAid, Coup:
		return 0, false
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// Blockers lists the cards that can block the action. Empty means
// unblockable.
func (a Action) Blockers() []Card {
	switch a {
	case ForeignAid:
		return []Card{Duke}
	case Steal:
		return []Card{Captain}
	case Assassinate:
		return []Card{Countess}
	case Income, Tax, Coup:
		return nil
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// BlockCard is the card a blocker claims when blocking the action.
func (a Action) BlockCard() (Card, bool) {
	blockers := a.Blockers()
	if len(blockers) == 0 {
		return 0, false
	}
	return blockers[0], true
}

// Blockable reports whether the action has at least one blocking card.
func (a Action) Blockable() bool {
	return len(a.Blockers()) > 0
}

// Effect returns the coins the actor gains and the coins taken from the
// target when the action resolves.
func (a Action) Effect(targetCoins int) (gain, taken int) {
	switch a {
	case Income:
		return 1, 0
	case ForeignAid:
		return 2, 0
	case Tax:
		return 3, 0
	case Steal:
		taken = min(MaxSteal, max(targetCoins, 0))
		return taken, taken
	case Assassinate, Coup:
		return 0, 0
	default:
		panic(fmt.Sprintf("rules: unknown action %d", int(a)))
	}
}

// Label is a display name: the claimed card for card actions, the identifier
// otherwise.
func (a Action) Label() string {
	if card, ok := a.ClaimedCard(); ok {
		return card.String()
	}
	switch a {
	case Income:
		return "Income"
	case ForeignAid:
		return "Foreign Aid"
	case Coup:
		return "Coup"
	}
	return a.String()
}
