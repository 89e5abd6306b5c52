package game

import (
	"encoding/json"
	"testing"

	"github.com/bluffhouse/coup-server/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChoice(t *testing.T) {
	cases := []struct {
		kind DecisionKind
		raw  any
		want Choice
	}{
		{DecisionPickAction, "foreign_aid", ActionChoice{Action: rules.ForeignAid}},
		{DecisionPickAction, " TAX ", ActionChoice{Action: rules.Tax}},
		{DecisionPickTarget, 2, TargetChoice{Target: 2}},
		{DecisionPickTarget, float64(3), TargetChoice{Target: 3}},
		{DecisionPickTarget, json.Number("1"), TargetChoice{Target: 1}},
		{DecisionPickTarget, json.RawMessage(`4`), TargetChoice{Target: 4}},
		{DecisionDiscard, "1", DiscardChoice{Card: 1}},
		{DecisionDefend, "doubt_action", DefenseChoice{Response: DefenseDoubt}},
		{DecisionDefend, "block", DefenseChoice{Response: DefenseBlock}},
		{DecisionDefend, json.RawMessage(`"accept"`), DefenseChoice{Response: DefenseAccept}},
		{DecisionChallengeAction, "doubt", ActionChallengeChoice{Doubt: true}},
		{DecisionChallengeBlock, "pass", BlockChallengeChoice{Doubt: false}},
		{DecisionBlockOrPass, "block", OpenBlockChoice{Block: true}},
		{DecisionReveal, "refuse", RevealChoice{Reveal: false}},
	}
	for _, tc := range cases {
		got, err := ParseChoice(tc.kind, tc.raw)
		require.NoError(t, err, "%s %v", tc.kind, tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseChoiceRejectsGarbage(t *testing.T) {
	bad := []struct {
		kind DecisionKind
		raw  any
	}{
		{DecisionPickAction, "exchange"},
		{DecisionPickAction, 3},
		{DecisionPickTarget, 1.5},
		{DecisionPickTarget, "first"},
		{DecisionDefend, "doubt"},
		{DecisionChallengeAction, "block"},
		{DecisionBlockOrPass, "doubt"},
		{DecisionReveal, true},
		{DecisionKind("shuffle"), "x"},
	}
	for _, tc := range bad {
		_, err := ParseChoice(tc.kind, tc.raw)
		assert.Error(t, err, "%s %v", tc.kind, tc.raw)
	}
}

func TestChoiceValueRoundTripsThroughParse(t *testing.T) {
	choices := []Choice{
		ActionChoice{Action: rules.Assassinate},
		TargetChoice{Target: 5},
		DefenseChoice{Response: DefenseBlock},
		ActionChallengeChoice{Doubt: true},
		BlockChallengeChoice{Doubt: false},
		OpenBlockChoice{Block: false},
		DiscardChoice{Card: 0},
		RevealChoice{Reveal: true},
	}
	for _, c := range choices {
		parsed, err := ParseChoice(c.Kind(), c.Value())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestPendingDecisionAllows(t *testing.T) {
	d := PendingDecision{
		Kind:    DecisionPickTarget,
		Options: []Choice{TargetChoice{Target: 1}, TargetChoice{Target: 3}},
	}
	assert.True(t, d.Allows(TargetChoice{Target: 3}))
	assert.False(t, d.Allows(TargetChoice{Target: 2}))
	assert.False(t, d.Allows(DiscardChoice{Card: 1}))
	assert.False(t, d.Allows(nil))
}

func TestInvariantViolationsPanic(t *testing.T) {
	players := []*Player{
		NewPlayer("a", rules.Duke, rules.Captain),
		NewPlayer("b", rules.Countess, rules.Assassin),
	}
	e, err := NewEngine(players, nil)
	require.NoError(t, err)
	require.NotPanics(t, e.checkInvariants)

	e.players[0].Coins = -1
	assert.Panics(t, e.checkInvariants)
	e.players[0].Coins = 2

	e.players[1].Hand = e.players[1].Hand[:1]
	assert.Panics(t, e.checkInvariants, "a card vanished")
	e.players[1].Hand = append(e.players[1].Hand, rules.Assassin)

	e.players = append(e.players, &Player{Name: "c", Discards: []rules.Card{rules.Duke, rules.Duke}})
	e.totalCards += 2
	e.turn = 2
	assert.Panics(t, e.checkInvariants, "turn on an eliminated player")
}
