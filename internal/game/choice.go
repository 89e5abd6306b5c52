package game

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bluffhouse/coup-server/internal/game/rules"
)

// DecisionKind enumerates the questions the engine can ask a player.
type DecisionKind string

const (
	DecisionPickAction      DecisionKind = "pick_action"
	DecisionPickTarget      DecisionKind = "pick_target"
	DecisionDefend          DecisionKind = "defend"
	DecisionChallengeAction DecisionKind = "challenge_action"
	DecisionChallengeBlock  DecisionKind = "challenge_block"
	DecisionBlockOrPass     DecisionKind = "block_or_pass"
	DecisionDiscard         DecisionKind = "discard"
	DecisionReveal          DecisionKind = "reveal"
)

// Wire values for the binary responses.
const (
	ResponseBlock       = "block"
	ResponseDoubtAction = "doubt_action"
	ResponseAccept      = "accept"
	ResponseDoubt       = "doubt"
	ResponsePass        = "pass"
	ResponseReveal      = "reveal"
	ResponseRefuse      = "refuse"
)

// Choice is an answer to a pending decision. There is exactly one variant per
// DecisionKind and all variants are comparable, so a choice can be checked
// against the offered options with ==.
type Choice interface {
	Kind() DecisionKind
	// Value is the primitive form sent over the wire: a string or an int.
	Value() any
	isChoice()
}

// ActionChoice answers pick_action.
type ActionChoice struct {
	Action rules.Action
}

// TargetChoice answers pick_target with a seat index.
type TargetChoice struct {
	Target int
}

// DefenseResponse is a target's reaction to a targeted action.
type DefenseResponse int

const (
	DefenseAccept DefenseResponse = iota
	DefenseBlock
	DefenseDoubt
)

// DefenseChoice answers defend.
type DefenseChoice struct {
	Response DefenseResponse
}

// ActionChallengeChoice answers challenge_action.
type ActionChallengeChoice struct {
	Doubt bool
}

// BlockChallengeChoice answers challenge_block.
type BlockChallengeChoice struct {
	Doubt bool
}

// OpenBlockChoice answers block_or_pass.
type OpenBlockChoice struct {
	Block bool
}

// DiscardChoice answers discard with a hand index.
type DiscardChoice struct {
	Card int
}

// RevealChoice answers reveal. Revealing without holding the card counts as
// a failed reveal.
type RevealChoice struct {
	Reveal bool
}

func (ActionChoice) Kind() DecisionKind          { return DecisionPickAction }
func (TargetChoice) Kind() DecisionKind          { return DecisionPickTarget }
func (DefenseChoice) Kind() DecisionKind         { return DecisionDefend }
func (ActionChallengeChoice) Kind() DecisionKind { return DecisionChallengeAction }
func (BlockChallengeChoice) Kind() DecisionKind  { return DecisionChallengeBlock }
func (OpenBlockChoice) Kind() DecisionKind       { return DecisionBlockOrPass }
func (DiscardChoice) Kind() DecisionKind         { return DecisionDiscard }
func (RevealChoice) Kind() DecisionKind          { return DecisionReveal }

func (c ActionChoice) Value() any  { return c.Action.String() }
func (c TargetChoice) Value() any  { return c.Target }
func (c DiscardChoice) Value() any { return c.Card }

func (c DefenseChoice) Value() any {
	switch c.Response {
	case DefenseBlock:
		return ResponseBlock
	case DefenseDoubt:
		return ResponseDoubtAction
	default:
		return ResponseAccept
	}
}

func (c ActionChallengeChoice) Value() any { return doubtOrPass(c.Doubt) }
func (c BlockChallengeChoice) Value() any  { return doubtOrPass(c.Doubt) }

func (c OpenBlockChoice) Value() any {
	if c.Block {
		return ResponseBlock
	}
	return ResponsePass
}

func (c RevealChoice) Value() any {
	if c.Reveal {
		return ResponseReveal
	}
	return ResponseRefuse
}

func doubtOrPass(doubt bool) any {
	if doubt {
		return ResponseDoubt
	}
	return ResponsePass
}

func (ActionChoice) isChoice()          {}
func (TargetChoice) isChoice()          {}
func (DefenseChoice) isChoice()         {}
func (ActionChallengeChoice) isChoice() {}
func (BlockChallengeChoice) isChoice()  {}
func (OpenBlockChoice) isChoice()       {}
func (DiscardChoice) isChoice()         {}
func (RevealChoice) isChoice()          {}

// ParseChoice converts a wire value into the Choice variant for kind. raw may
// be a string, any integer or float type, or a json.Number / json.RawMessage.
func ParseChoice(kind DecisionKind, raw any) (Choice, error) {
	switch kind {
	case DecisionPickAction:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		action, err := rules.ParseAction(s)
		if err != nil {
			return nil, err
		}
		return ActionChoice{Action: action}, nil
	case DecisionPickTarget:
		n, err := asInt(raw)
		if err != nil {
			return nil, err
		}
		return TargetChoice{Target: n}, nil
	case DecisionDiscard:
		n, err := asInt(raw)
		if err != nil {
			return nil, err
		}
		return DiscardChoice{Card: n}, nil
	case DecisionDefend:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		switch s {
		case ResponseBlock:
			return DefenseChoice{Response: DefenseBlock}, nil
		case ResponseDoubtAction:
			return DefenseChoice{Response: DefenseDoubt}, nil
		case ResponseAccept:
			return DefenseChoice{Response: DefenseAccept}, nil
		}
		return nil, fmt.Errorf("invalid defend response %q", s)
	case DecisionChallengeAction, DecisionChallengeBlock:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		if s != ResponseDoubt && s != ResponsePass {
			return nil, fmt.Errorf("invalid challenge response %q", s)
		}
		if kind == DecisionChallengeAction {
			return ActionChallengeChoice{Doubt: s == ResponseDoubt}, nil
		}
		return BlockChallengeChoice{Doubt: s == ResponseDoubt}, nil
	case DecisionBlockOrPass:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		if s != ResponseBlock && s != ResponsePass {
			return nil, fmt.Errorf("invalid block response %q", s)
		}
		return OpenBlockChoice{Block: s == ResponseBlock}, nil
	case DecisionReveal:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		if s != ResponseReveal && s != ResponseRefuse {
			return nil, fmt.Errorf("invalid reveal response %q", s)
		}
		return RevealChoice{Reveal: s == ResponseReveal}, nil
	default:
		return nil, fmt.Errorf("unknown decision kind %q", kind)
	}
}

func asString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v)), nil
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", fmt.Errorf("expected string choice: %w", err)
		}
		return asString(s)
	default:
		return "", fmt.Errorf("expected string choice, got %T", raw)
	}
}

func asInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer choice, got %v", v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected integer choice: %w", err)
		}
		return int(n), nil
	case json.RawMessage:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return 0, fmt.Errorf("expected integer choice: %w", err)
		}
		return asInt(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("expected integer choice: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer choice, got %T", raw)
	}
}
