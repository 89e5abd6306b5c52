// Package bot implements automated players that answer pending decisions
// from a redacted game view.
package bot

import (
	"math/rand"

	"github.com/bluffhouse/coup-server/internal/game"
	"github.com/bluffhouse/coup-server/internal/game/rules"
	"go.uber.org/zap"
)

// Brain answers a decision using only what the viewer is allowed to see.
type Brain interface {
	Decide(view *game.GameView, d game.PendingDecision) game.Choice
}

// Agent is a heuristic Brain driven by a Personality. It is not safe for
// concurrent use.
type Agent struct {
	Name        string
	Personality Personality

	rng    *rand.Rand
	logger *zap.Logger
}

// NewAgent creates an agent drawing its randomness from rng.
func NewAgent(name string, personality Personality, rng *rand.Rand, logger *zap.Logger) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		Name:        name,
		Personality: personality,
		rng:         rng,
		logger:      logger,
	}
}

// Decide always returns one of d's options.
func (a *Agent) Decide(view *game.GameView, d game.PendingDecision) game.Choice {
	var choice game.Choice
	if view != nil && view.Me() != nil {
		switch d.Kind {
		case game.DecisionPickAction:
			choice = a.pickAction(view, d)
		case game.DecisionPickTarget:
			choice = a.pickTarget(view, d)
		case game.DecisionDiscard:
			choice = a.discard(view, d)
		case game.DecisionChallengeAction:
			choice = a.challenge(view, d, d.ContextString(game.CtxClaimedCard), true)
		case game.DecisionChallengeBlock:
			choice = a.challenge(view, d, d.ContextString(game.CtxBlockCard), false)
		case game.DecisionBlockOrPass:
			choice = a.blockOrPass(view, d)
		case game.DecisionDefend:
			choice = a.defend(view, d)
		case game.DecisionReveal:
			choice = game.RevealChoice{Reveal: a.holds(view, d.ContextString(game.CtxCardName))}
		}
	}

	if choice == nil || !d.Allows(choice) {
		choice = a.randomOption(d)
	}
	if choice == nil {
		return nil
	}
	a.logger.Debug("bot decided",
		zap.String("bot", a.Name),
		zap.String("decision_type", string(d.Kind)),
		zap.Any("choice", choice.Value()),
	)
	return choice
}

func (a *Agent) randomOption(d game.PendingDecision) game.Choice {
	if len(d.Options) == 0 {
		return nil
	}
	return d.Options[a.rng.Intn(len(d.Options))]
}

func (a *Agent) roll(p float64) bool {
	return a.rng.Float64() < p
}

func (a *Agent) holds(view *game.GameView, card string) bool {
	if card == "" {
		return false
	}
	for _, c := range view.Me().Influences {
		if c == card {
			return true
		}
	}
	return false
}

func (a *Agent) pickAction(view *game.GameView, d game.PendingDecision) game.Choice {
	p := a.Personality
	me := view.Me()

	available := make(map[rules.Action]bool, len(d.Options))
	for _, opt := range d.Options {
		if ac, ok := opt.(game.ActionChoice); ok {
			available[ac.Action] = true
		}
	}
	pick := func(act rules.Action) game.Choice { return game.ActionChoice{Action: act} }
	claims := func(act rules.Action) bool {
		card, _ := act.ClaimedCard()
		return a.holds(view, card.String())
	}

	if available[rules.Coup] && (me.Coins >= rules.ForcedCoupThreshold || a.roll(p.Aggression)) {
		return pick(rules.Coup)
	}
	if available[rules.Tax] && claims(rules.Tax) {
		return pick(rules.Tax)
	}
	if available[rules.Assassinate] && claims(rules.Assassinate) && a.roll(p.Aggression) {
		return pick(rules.Assassinate)
	}
	if available[rules.Steal] && claims(rules.Steal) && a.roll(p.Aggression) {
		return pick(rules.Steal)
	}

	if a.roll(p.BluffRate) {
		var bluffs []rules.Action
		for _, act := range []rules.Action{rules.Tax, rules.Assassinate, rules.Steal} {
			if available[act] && !claims(act) {
				bluffs = append(bluffs, act)
			}
		}
		if len(bluffs) > 0 {
			return pick(bluffs[a.rng.Intn(len(bluffs))])
		}
	}

	if available[rules.ForeignAid] {
		return pick(rules.ForeignAid)
	}
	if available[rules.Income] {
		return pick(rules.Income)
	}
	return nil
}

func (a *Agent) pickTarget(view *game.GameView, d game.PendingDecision) game.Choice {
	p := a.Personality
	var targets, oneCard []int
	for _, opt := range d.Options {
		tc, ok := opt.(game.TargetChoice)
		if !ok || tc.Target < 0 || tc.Target >= len(view.Players) {
			continue
		}
		targets = append(targets, tc.Target)
		if view.Players[tc.Target].InfluenceCount == 1 {
			oneCard = append(oneCard, tc.Target)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	if len(oneCard) > 0 && a.roll(p.Aggression) {
		return game.TargetChoice{Target: oneCard[a.rng.Intn(len(oneCard))]}
	}
	if a.roll(p.Aggression) {
		richest := targets[0]
		for _, idx := range targets[1:] {
			if view.Players[idx].Coins > view.Players[richest].Coins {
				richest = idx
			}
		}
		return game.TargetChoice{Target: richest}
	}
	return game.TargetChoice{Target: targets[a.rng.Intn(len(targets))]}
}

// discard gives up the card with the lowest keep value.
func (a *Agent) discard(view *game.GameView, d game.PendingDecision) game.Choice {
	hand := view.Me().Influences
	best, bestValue := -1, 0
	for _, opt := range d.Options {
		dc, ok := opt.(game.DiscardChoice)
		if !ok {
			continue
		}
		value := 0
		if dc.Card >= 0 && dc.Card < len(hand) {
			if card, err := rules.ParseCard(hand[dc.Card]); err == nil {
				value = card.KeepValue()
			}
		}
		if best < 0 || value < bestValue {
			best, bestValue = dc.Card, value
		}
	}
	if best < 0 {
		return nil
	}
	return game.DiscardChoice{Card: best}
}

func (a *Agent) challenge(view *game.GameView, d game.PendingDecision, card string, earlyCaution bool) game.Choice {
	doubt := a.roll(a.doubtProbability(view, card, earlyCaution))
	if d.Kind == game.DecisionChallengeBlock {
		return game.BlockChallengeChoice{Doubt: doubt}
	}
	return game.ActionChallengeChoice{Doubt: doubt}
}

func (a *Agent) blockOrPass(view *game.GameView, d game.PendingDecision) game.Choice {
	p := a.Personality
	if a.holds(view, d.ContextString(game.CtxBlockCard)) {
		return game.OpenBlockChoice{Block: a.roll(p.BlockWithCardRate)}
	}
	return game.OpenBlockChoice{Block: a.roll(p.BlockBluffRate)}
}

func (a *Agent) defend(view *game.GameView, d game.PendingDecision) game.Choice {
	p := a.Personality
	block := game.DefenseChoice{Response: game.DefenseBlock}
	doubt := game.DefenseChoice{Response: game.DefenseDoubt}
	blockCard := d.ContextString(game.CtxBlockCard)

	if a.holds(view, blockCard) && d.Allows(block) && a.roll(p.BlockWithCardRate) {
		return block
	}
	if d.Allows(doubt) && a.roll(a.doubtProbability(view, d.ContextString(game.CtxClaimedCard), false)) {
		return doubt
	}
	if blockCard != "" && d.Allows(block) && a.roll(p.BlockBluffRate) {
		return block
	}
	return game.DefenseChoice{Response: game.DefenseAccept}
}

// doubtProbability grows with how many copies of card are already accounted
// for. A claim on a card whose every copy is visible is always doubted.
func (a *Agent) doubtProbability(view *game.GameView, card string, earlyCaution bool) float64 {
	p := a.Personality
	doubt := p.BaseDoubtRate
	if earlyCaution && a.earlyGame(view) {
		doubt *= p.EarlyCautionFactor
	}

	copies, ok := view.CardsPerType[card]
	if !ok || copies <= 0 {
		return doubt
	}
	known := a.knownCopies(view, card)
	plausible := copies - known
	if plausible <= 0 {
		return 1
	}
	scarcity := float64(copies-plausible) / float64(copies)
	return min(1, doubt+scarcity*p.CardCountingWeight)
}

func (a *Agent) earlyGame(view *game.GameView) bool {
	revealed := 0
	for _, pl := range view.Players {
		revealed += len(pl.RevealedInfluences)
	}
	return revealed < a.Personality.EarlyGameThreshold
}

func (a *Agent) knownCopies(view *game.GameView, card string) int {
	count := 0
	for _, c := range view.Me().Influences {
		if c == card {
			count++
		}
	}
	for _, pl := range view.Players {
		for _, c := range pl.RevealedInfluences {
			if c == card {
				count++
			}
		}
	}
	return count
}
