package bot_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/bluffhouse/coup-server/internal/bot"
	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// certain never bluffs or doubts and always acts on what it holds.
func certain() bot.Personality {
	return bot.Personality{
		EarlyCautionFactor: 1,
		BlockWithCardRate:  1,
		Aggression:         1,
	}
}

func newAgent(t *testing.T, p bot.Personality) *bot.Agent {
	return bot.NewAgent("bot", p, rand.New(rand.NewSource(1)), zaptest.NewLogger(t))
}

func engine(t *testing.T, seats ...*game.Player) *game.Engine {
	t.Helper()
	e, err := game.NewEngine(seats, nil)
	require.NoError(t, err)
	return e
}

func decide(t *testing.T, agent *bot.Agent, e *game.Engine) game.Choice {
	t.Helper()
	d, ok := e.PendingDecision()
	require.True(t, ok)
	choice := agent.Decide(e.ViewAs(d.PlayerIndex), d)
	require.True(t, d.Allows(choice), "agent returned illegal %v", choice)
	return choice
}

func TestAgentPlaysHeldDuke(t *testing.T) {
	e := engine(t,
		game.NewPlayer("me", rules.Duke, rules.Countess),
		game.NewPlayer("you", rules.Captain, rules.Captain),
	)
	assert.Equal(t, game.ActionChoice{Action: rules.Tax}, decide(t, newAgent(t, certain()), e))
}

func TestAgentFallsBackToForeignAid(t *testing.T) {
	e := engine(t,
		game.NewPlayer("me", rules.Countess, rules.Countess),
		game.NewPlayer("you", rules.Captain, rules.Captain),
	)
	assert.Equal(t, game.ActionChoice{Action: rules.ForeignAid}, decide(t, newAgent(t, certain()), e))
}

func TestAgentCoupsWhenForced(t *testing.T) {
	me := game.NewPlayer("me", rules.Duke, rules.Countess)
	me.Coins = 10
	e := engine(t, me, game.NewPlayer("you", rules.Captain, rules.Captain))
	agent := newAgent(t, bot.DefaultPersonality())
	assert.Equal(t, game.ActionChoice{Action: rules.Coup}, decide(t, agent, e))
}

func TestAgentTargetsOneCardPlayer(t *testing.T) {
	me := game.NewPlayer("me", rules.Captain, rules.Countess)
	rich := game.NewPlayer("rich", rules.Duke, rules.Duke)
	rich.Coins = 6
	e := engine(t, me, rich, game.NewPlayer("weak", rules.Assassin))

	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Steal}))
	assert.Equal(t, game.TargetChoice{Target: 2}, decide(t, newAgent(t, certain()), e))
}

func TestAgentDiscardsLowestValueCard(t *testing.T) {
	attacker := game.NewPlayer("a", rules.Duke, rules.Duke)
	attacker.Coins = 7
	e := engine(t, attacker, game.NewPlayer("me", rules.Duke, rules.Countess))
	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Coup}))
	require.NoError(t, e.Submit(game.TargetChoice{Target: 1}))

	assert.Equal(t, game.DiscardChoice{Card: 1}, decide(t, newAgent(t, certain()), e))
}

func TestAgentRevealsOnlyHeldCard(t *testing.T) {
	e := engine(t,
		game.NewPlayer("me", rules.Duke, rules.Countess),
		game.NewPlayer("you", rules.Captain, rules.Captain),
	)
	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Tax}))
	require.NoError(t, e.Submit(game.ActionChallengeChoice{Doubt: true}))

	assert.Equal(t, game.RevealChoice{Reveal: true}, decide(t, newAgent(t, certain()), e))
}

func TestAgentBlocksWithHeldCard(t *testing.T) {
	e := engine(t,
		game.NewPlayer("you", rules.Captain, rules.Assassin),
		game.NewPlayer("me", rules.Captain, rules.Countess),
	)
	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Steal}))
	require.NoError(t, e.Submit(game.TargetChoice{Target: 1}))

	assert.Equal(t, game.DefenseChoice{Response: game.DefenseBlock}, decide(t, newAgent(t, certain()), e))
}

func TestAgentAlwaysDoubtsImpossibleClaim(t *testing.T) {
	e := engine(t,
		game.NewPlayer("liar", rules.Countess, rules.Countess),
		game.NewPlayer("me", rules.Duke, rules.Duke),
		&game.Player{Name: "gone", Discards: []rules.Card{rules.Duke, rules.Captain}},
	)
	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Tax}))

	passive := certain()
	passive.CardCountingWeight = 0
	assert.Equal(t, game.ActionChallengeChoice{Doubt: true}, decide(t, newAgent(t, passive), e))
}

func TestAgentPassesWhenItNeverDoubts(t *testing.T) {
	e := engine(t,
		game.NewPlayer("you", rules.Duke, rules.Countess),
		game.NewPlayer("me", rules.Captain, rules.Assassin),
	)
	require.NoError(t, e.Submit(game.ActionChoice{Action: rules.Tax}))
	assert.Equal(t, game.ActionChallengeChoice{Doubt: false}, decide(t, newAgent(t, certain()), e))
}

func TestAgentSpectatorFallsBackToLegalOption(t *testing.T) {
	e := engine(t,
		game.NewPlayer("a", rules.Duke, rules.Countess),
		game.NewPlayer("b", rules.Captain, rules.Assassin),
	)
	d, ok := e.PendingDecision()
	require.True(t, ok)
	choice := newAgent(t, certain()).Decide(e.ViewAs(game.SpectatorIndex), d)
	assert.True(t, d.Allows(choice))
}

func TestBotsFinishGames(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		seed := seed
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			names := []string{"Alpha", "Beta", "Gamma", "Delta"}
			e, err := game.NewGame(names, rng)
			require.NoError(t, err)

			agents := make([]*bot.Agent, len(names))
			for i, name := range names {
				agents[i] = bot.NewAgent(name, bot.RandomPersonality(rng), rng, nil)
			}

			for steps := 0; !e.IsGameOver(); steps++ {
				require.Less(t, steps, 5000)
				d, ok := e.PendingDecision()
				require.True(t, ok)
				choice := agents[d.PlayerIndex].Decide(e.ViewAs(d.PlayerIndex), d)
				require.NoError(t, e.Submit(choice))
			}
			_, ok := e.Winner()
			assert.True(t, ok)
		})
	}
}

func TestRandomPersonalityRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		p := bot.RandomPersonality(rng)
		assert.InDelta(t, 0.275, p.BluffRate, 0.225)
		assert.InDelta(t, 0.225, p.BaseDoubtRate, 0.175)
		assert.GreaterOrEqual(t, p.EarlyGameThreshold, 1)
		assert.LessOrEqual(t, p.EarlyGameThreshold, 3)
		assert.GreaterOrEqual(t, p.BlockWithCardRate, 0.70)
		assert.InDelta(t, 0.5, p.Aggression, 0.4)
	}
	assert.Contains(t, bot.DefaultPersonality().String(), "bluff=0.20")
}
