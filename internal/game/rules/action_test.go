package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionCosts(t *testing.T) {
	assert.Equal(t, 0, Income.Cost())
	assert.Equal(t, 0, ForeignAid.Cost())
	assert.Equal(t, 0, Tax.Cost())
	assert.Equal(t, 0, Steal.Cost())
	assert.Equal(t, 3, Assassinate.Cost())
	assert.Equal(t, 7, Coup.Cost())

	assert.False(t, Assassinate.CanUse(2))
	assert.True(t, Assassinate.CanUse(3))
	assert.False(t, Coup.CanUse(6))
	assert.True(t, Coup.CanUse(7))
	assert.True(t, Steal.CanUse(0))
}

func TestActionFlags(t *testing.T) {
	for _, a := range AllActions() {
		switch a {
		case Income, Coup:
			assert.False(t, a.Challengeable(), "%s", a)
		default:
			assert.True(t, a.Challengeable(), "%s", a)
		}
		assert.Equal(t, a == ForeignAid, a.OpenBlockable(), "%s", a)
		assert.Equal(t, a == Assassinate || a == Coup, a.CausesInfluenceLoss(), "%s", a)
	}

	assert.True(t, Steal.RequiresTarget())
	assert.True(t, Assassinate.RequiresTarget())
	assert.True(t, Coup.RequiresTarget())
	assert.False(t, Tax.RequiresTarget())
	assert.False(t, Coup.Blockable())
	assert.False(t, Income.Blockable())
}

func TestActionBlockers(t *testing.T) {
	card, ok := ForeignAid.BlockCard()
	require.True(t, ok)
	assert.Equal(t, Duke, card)

	card, ok = Steal.BlockCard()
	require.True(t, ok)
	assert.Equal(t, Captain, card)

	card, ok = Assassinate.BlockCard()
	require.True(t, ok)
	assert.Equal(t, Countess, card)

	_, ok = Tax.BlockCard()
	assert.False(t, ok)
}

func TestStealEffectIsCapped(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 5: 2}
	for coins, want := range cases {
		gain, taken := Steal.Effect(coins)
		assert.Equal(t, want, gain, "target coins %d", coins)
		assert.Equal(t, want, taken, "target coins %d", coins)
	}
}

func TestActionEffects(t *testing.T) {
	gain, taken := Income.Effect(4)
	assert.Equal(t, 1, gain)
	assert.Equal(t, 0, taken)

	gain, _ = ForeignAid.Effect(0)
	assert.Equal(t, 2, gain)

	gain, _ = Tax.Effect(0)
	assert.Equal(t, 3, gain)

	gain, taken = Assassinate.Effect(9)
	assert.Zero(t, gain)
	assert.Zero(t, taken)
}

func TestUnknownActionPanics(t *testing.T) {
	assert.Panics(t, func() { Action(42).Cost() })
	assert.Panics(t, func() { Action(0).RequiresTarget() })
}

func TestActionTextEncoding(t *testing.T) {
	data, err := json.Marshal([]Action{ForeignAid, Coup})
	require.NoError(t, err)
	assert.JSONEq(t, `["foreign_aid","coup"]`, string(data))

	var decoded []Action
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []Action{ForeignAid, Coup}, decoded)

	_, err = ParseAction("exchange")
	assert.Error(t, err)
}

func TestCardCatalog(t *testing.T) {
	a, ok := Duke.GrantedAction()
	require.True(t, ok)
	assert.Equal(t, Tax, a)

	a, ok = Captain.GrantedAction()
	require.True(t, ok)
	assert.Equal(t, Steal, a)

	_, ok = Countess.GrantedAction()
	assert.False(t, ok)

	assert.Greater(t, Duke.KeepValue(), Countess.KeepValue())

	c, err := ParseCard("countess")
	require.NoError(t, err)
	assert.Equal(t, Countess, c)

	assert.Equal(t, map[string]int{"Duke": 3, "Assassin": 3, "Captain": 3, "Countess": 3}, CardsPerType())
}
