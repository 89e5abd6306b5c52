package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/bluffhouse/coup-server/internal/game/rules"
	"go.uber.org/zap"
)

// Seating limits for a single game.
const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Protocol errors. Submit returns one of these, wrapped, and leaves the game
// untouched; the caller may retry with a corrected choice.
var (
	ErrNoPendingDecision = errors.New("no decision is pending")
	ErrWrongDecisionKind = errors.New("choice does not answer the pending decision")
	ErrIllegalChoice     = errors.New("choice is not among the offered options")
	ErrInvalidSetup      = errors.New("invalid game setup")
)

// Engine is the rules state machine for one game. It is a call-and-response
// automaton: read PendingDecision, route it to its owner, feed the answer to
// Submit. It is not safe for concurrent use; callers serialise access.
type Engine struct {
	players []*Player
	deck    *rules.Deck

	turn       int
	turnNumber int
	phase      phase
	totalCards int

	logger *zap.Logger
	events *rules.EventBus
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for game events.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEventBus publishes game events to bus instead of a private one.
func WithEventBus(bus *rules.EventBus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.events = bus
		}
	}
}

// NewEngine creates an engine over already dealt players. The engine takes
// its own copy of each player. deck may be nil, in which case reveals
// exchange a card with itself.
func NewEngine(players []*Player, deck *rules.Deck, opts ...Option) (*Engine, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, fmt.Errorf("%w: need %d-%d players, got %d", ErrInvalidSetup, MinPlayers, MaxPlayers, len(players))
	}
	if deck == nil {
		deck = rules.NewDeck(nil, nil)
	}

	e := &Engine{
		players:    make([]*Player, len(players)),
		deck:       deck,
		turnNumber: 1,
		logger:     zap.NewNop(),
		events:     rules.NewEventBus(),
	}
	for _, opt := range opts {
		opt(e)
	}

	seen := make(map[string]bool, len(players))
	for i, p := range players {
		if p == nil {
			return nil, fmt.Errorf("%w: player %d is nil", ErrInvalidSetup, i)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: player %d has no name", ErrInvalidSetup, i)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate player name %q", ErrInvalidSetup, name)
		}
		if p.Coins < 0 {
			return nil, fmt.Errorf("%w: player %q has negative coins", ErrInvalidSetup, name)
		}
		seen[name] = true
		e.players[i] = p.clone()
		e.totalCards += len(p.Hand) + len(p.Discards)
	}
	e.totalCards += deck.Len()

	if !e.players[0].Alive() && !e.IsGameOver() {
		e.turn = e.nextAlive(0)
	}

	e.logger.Debug("game created",
		zap.Int("players", len(e.players)),
		zap.Int("deck_size", deck.Len()),
	)
	return e, nil
}

// NewGame builds and shuffles the standard deck from rng, deals two cards and
// two coins to each named player and seats them in the given order.
func NewGame(names []string, rng *rand.Rand, opts ...Option) (*Engine, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return nil, fmt.Errorf("%w: need %d-%d players, got %d", ErrInvalidSetup, MinPlayers, MaxPlayers, len(names))
	}
	deck := rules.NewStandardDeck(rng)
	players := make([]*Player, 0, len(names))
	for _, name := range names {
		hand := make([]rules.Card, 0, StartingHand)
		for i := 0; i < StartingHand; i++ {
			card, ok := deck.Draw()
			if !ok {
				return nil, fmt.Errorf("%w: deck ran out while dealing", ErrInvalidSetup)
			}
			hand = append(hand, card)
		}
		players = append(players, NewPlayer(name, hand...))
	}
	return NewEngine(players, deck, opts...)
}

// Events returns the bus game events are published on.
func (e *Engine) Events() *rules.EventBus {
	return e.events
}

// CurrentTurn returns the seat whose turn it is.
func (e *Engine) CurrentTurn() int {
	return e.turn
}

// TurnNumber counts turns from 1.
func (e *Engine) TurnNumber() int {
	return e.turnNumber
}

// NumPlayers returns the number of seats.
func (e *Engine) NumPlayers() int {
	return len(e.players)
}

// Player returns a copy of the player at seat idx.
func (e *Engine) Player(idx int) Player {
	return *e.players[idx].clone()
}

// Players returns copies of all players in seating order.
func (e *Engine) Players() []Player {
	out := make([]Player, len(e.players))
	for i, p := range e.players {
		out[i] = *p.clone()
	}
	return out
}

// DeckSize returns the number of cards in the shared deck.
func (e *Engine) DeckSize() int {
	return e.deck.Len()
}

// Phase reports which sub-transaction the game is in.
func (e *Engine) Phase() PhaseKind {
	if e.IsGameOver() {
		return PhaseGameOver
	}
	if e.phase == nil {
		return PhaseTurnStart
	}
	return e.phase.kind()
}

// IsGameOver reports whether at most one player still holds influence.
func (e *Engine) IsGameOver() bool {
	return len(e.aliveIndices()) <= 1
}

// Winner returns the sole surviving seat once the game is over.
func (e *Engine) Winner() (int, bool) {
	alive := e.aliveIndices()
	if len(alive) != 1 {
		return 0, false
	}
	return alive[0], true
}

// PendingDecision derives the single decision the game is waiting on. It
// returns false once the game is over.
func (e *Engine) PendingDecision() (PendingDecision, bool) {
	if e.IsGameOver() {
		return PendingDecision{}, false
	}

	// Cases are listed in priority order: reveal, discard, action challenge,
	// block challenge, open block, defense, target, turn start.
	switch ph := e.phase.(type) {
	case awaitingReveal:
		return PendingDecision{
			PlayerIndex: ph.challenged,
			Kind:        DecisionReveal,
			Options:     []Choice{RevealChoice{Reveal: true}, RevealChoice{Reveal: false}},
			Context: map[string]any{
				CtxCardName:     ph.card.String(),
				CtxContext:      string(ph.context),
				CtxAttackerName: e.players[ph.actor].Name,
				CtxDoubterName:  e.players[ph.doubter].Name,
				CtxActionName:   ph.action.String(),
			},
		}, true

	case awaitingDiscard:
		p := e.players[ph.player]
		opts := make([]Choice, len(p.Hand))
		for i := range p.Hand {
			opts[i] = DiscardChoice{Card: i}
		}
		return PendingDecision{
			PlayerIndex: ph.player,
			Kind:        DecisionDiscard,
			Options:     opts,
			Context:     map[string]any{},
		}, true

	case awaitingActionChallenge:
		card, _ := ph.action.ClaimedCard()
		return PendingDecision{
			PlayerIndex: ph.queue[0],
			Kind:        DecisionChallengeAction,
			Options:     []Choice{ActionChallengeChoice{Doubt: true}, ActionChallengeChoice{Doubt: false}},
			Context: map[string]any{
				CtxActionName:  ph.action.String(),
				CtxClaimedCard: card.String(),
				CtxActorName:   e.players[ph.actor].Name,
			},
		}, true

	case awaitingBlockChallenge:
		card, _ := ph.action.BlockCard()
		return PendingDecision{
			PlayerIndex: ph.queue[0],
			Kind:        DecisionChallengeBlock,
			Options:     []Choice{BlockChallengeChoice{Doubt: true}, BlockChallengeChoice{Doubt: false}},
			Context: map[string]any{
				CtxBlockCard:   card.String(),
				CtxBlockerName: e.players[ph.blocker].Name,
				CtxActionName:  ph.action.String(),
			},
		}, true

	case awaitingOpenBlock:
		card, _ := ph.action.BlockCard()
		return PendingDecision{
			PlayerIndex: ph.queue[0],
			Kind:        DecisionBlockOrPass,
			Options:     []Choice{OpenBlockChoice{Block: true}, OpenBlockChoice{Block: false}},
			Context: map[string]any{
				CtxActionName: ph.action.String(),
				CtxBlockCard:  card.String(),
				CtxActorName:  e.players[ph.actor].Name,
			},
		}, true

	case awaitingDefense:
		opts := make([]Choice, 0, 3)
		if ph.action.Blockable() {
			opts = append(opts, DefenseChoice{Response: DefenseBlock})
		}
		if ph.action.Challengeable() {
			opts = append(opts, DefenseChoice{Response: DefenseDoubt})
		}
		opts = append(opts, DefenseChoice{Response: DefenseAccept})
		ctx := map[string]any{
			CtxActionName:   ph.action.String(),
			CtxAttackerName: e.players[ph.actor].Name,
			CtxAttackerIdx:  ph.actor,
		}
		if card, ok := ph.action.BlockCard(); ok {
			ctx[CtxBlockCard] = card.String()
		}
		if card, ok := ph.action.ClaimedCard(); ok {
			ctx[CtxClaimedCard] = card.String()
		}
		return PendingDecision{
			PlayerIndex: ph.target,
			Kind:        DecisionDefend,
			Options:     opts,
			Context:     ctx,
		}, true

	case awaitingTarget:
		others := e.othersAfter(e.turn)
		opts := make([]Choice, len(others))
		for i, idx := range others {
			opts[i] = TargetChoice{Target: idx}
		}
		return PendingDecision{
			PlayerIndex: e.turn,
			Kind:        DecisionPickTarget,
			Options:     opts,
			Context:     map[string]any{CtxActionName: ph.action.String()},
		}, true

	case nil:
		return PendingDecision{
			PlayerIndex: e.turn,
			Kind:        DecisionPickAction,
			Options:     e.actionOptions(e.players[e.turn]),
			Context:     map[string]any{},
		}, true

	default:
		panic(fmt.Sprintf("game: unknown phase %T", ph))
	}
}

func (e *Engine) actionOptions(p *Player) []Choice {
	if p.Coins >= rules.ForcedCoupThreshold {
		return []Choice{ActionChoice{Action: rules.Coup}}
	}
	opts := make([]Choice, 0, len(rules.AllActions()))
	for _, a := range rules.AllActions() {
		if a.CanUse(p.Coins) {
			opts = append(opts, ActionChoice{Action: a})
		}
	}
	return opts
}

// Submit answers the pending decision. A choice that is not currently offered
// is rejected with a wrapped protocol error and the game is left unchanged.
func (e *Engine) Submit(choice Choice) error {
	decision, ok := e.PendingDecision()
	if !ok {
		return ErrNoPendingDecision
	}
	if choice == nil {
		return fmt.Errorf("%w: nil choice for %s", ErrWrongDecisionKind, decision.Kind)
	}
	if choice.Kind() != decision.Kind {
		return fmt.Errorf("%w: expected %s, got %s", ErrWrongDecisionKind, decision.Kind, choice.Kind())
	}
	if !decision.Allows(choice) {
		return fmt.Errorf("%w: %v is not a legal %s option", ErrIllegalChoice, choice.Value(), decision.Kind)
	}

	switch c := choice.(type) {
	case ActionChoice:
		e.onPickAction(c.Action)
	case TargetChoice:
		e.onPickTarget(c.Target)
	case DefenseChoice:
		e.onDefend(c.Response)
	case ActionChallengeChoice:
		e.onActionChallenge(c.Doubt)
	case BlockChallengeChoice:
		e.onBlockChallenge(c.Doubt)
	case OpenBlockChoice:
		e.onOpenBlock(c.Block)
	case DiscardChoice:
		e.onDiscard(c.Card)
	case RevealChoice:
		e.onReveal(c.Reveal)
	default:
		panic(fmt.Sprintf("game: unhandled choice %T", choice))
	}

	e.checkInvariants()
	return nil
}

func (e *Engine) onPickAction(a rules.Action) {
	actor := e.turn
	e.publish(rules.Event{Type: rules.EventActionDeclared, Player: actor, Target: rules.NoPlayer, Action: a})

	switch {
	case a.RequiresTarget():
		e.phase = awaitingTarget{action: a}
	case a.OpenBlockable():
		e.openWindow(actor, a, func(queue []int) phase {
			return awaitingOpenBlock{actor: actor, action: a, queue: queue}
		})
	case a.Challengeable():
		e.openWindow(actor, a, func(queue []int) phase {
			return awaitingActionChallenge{actor: actor, action: a, queue: queue}
		})
	default:
		e.applyEffect(actor, rules.NoPlayer, a)
		e.endTurn(actor)
	}
}

// openWindow starts a bystander queue of alive others, or resolves the action
// outright when nobody is left to respond.
func (e *Engine) openWindow(actor int, a rules.Action, build func([]int) phase) {
	queue := e.othersAfter(actor)
	if len(queue) == 0 {
		e.applyEffect(actor, rules.NoPlayer, a)
		e.endTurn(actor)
		return
	}
	e.phase = build(queue)
}

func (e *Engine) onPickTarget(target int) {
	ph := e.phase.(awaitingTarget)
	actor := e.turn
	a := ph.action
	e.phase = nil

	e.publish(rules.Event{Type: rules.EventTargetChosen, Player: actor, Target: target, Action: a})
	e.payCost(actor, a)

	if !a.Blockable() {
		e.resolve(actor, target, a)
		return
	}
	e.phase = awaitingDefense{actor: actor, target: target, action: a}
}

func (e *Engine) onDefend(response DefenseResponse) {
	ph := e.phase.(awaitingDefense)
	e.phase = nil

	switch response {
	case DefenseBlock:
		card, _ := ph.action.BlockCard()
		e.publish(rules.Event{Type: rules.EventBlockDeclared, Player: ph.target, Target: ph.actor, Action: ph.action, Card: card})
		e.phase = awaitingBlockChallenge{
			actor:   ph.actor,
			blocker: ph.target,
			action:  ph.action,
			target:  ph.target,
			queue:   []int{ph.actor},
		}

	case DefenseDoubt:
		card, _ := ph.action.ClaimedCard()
		e.publish(rules.Event{Type: rules.EventChallengeDeclared, Player: ph.target, Target: ph.actor, Action: ph.action, Card: card})
		if e.players[ph.actor].Holds(card) {
			e.phase = awaitingReveal{
				challenged: ph.actor,
				card:       card,
				context:    RevealDoubtAction,
				actor:      ph.actor,
				target:     ph.target,
				doubter:    ph.target,
				action:     ph.action,
			}
			return
		}
		e.cancel(ph.actor, ph.action)

	case DefenseAccept:
		e.resolve(ph.actor, ph.target, ph.action)

	default:
		panic(fmt.Sprintf("game: unknown defense response %d", response))
	}
}

func (e *Engine) onActionChallenge(doubt bool) {
	ph := e.phase.(awaitingActionChallenge)
	doubter := ph.queue[0]

	if !doubt {
		e.publish(rules.Event{Type: rules.EventChallengePassed, Player: doubter, Target: ph.actor, Action: ph.action})
		rest := append([]int(nil), ph.queue[1:]...)
		if len(rest) > 0 {
			e.phase = awaitingActionChallenge{actor: ph.actor, action: ph.action, queue: rest}
			return
		}
		e.phase = nil
		e.applyEffect(ph.actor, rules.NoPlayer, ph.action)
		e.endTurn(ph.actor)
		return
	}

	e.phase = nil
	card, _ := ph.action.ClaimedCard()
	e.publish(rules.Event{Type: rules.EventChallengeDeclared, Player: doubter, Target: ph.actor, Action: ph.action, Card: card})
	if e.players[ph.actor].Holds(card) {
		e.phase = awaitingReveal{
			challenged: ph.actor,
			card:       card,
			context:    RevealDoubtOpen,
			actor:      ph.actor,
			target:     rules.NoPlayer,
			doubter:    doubter,
			action:     ph.action,
		}
		return
	}
	e.cancel(ph.actor, ph.action)
}

func (e *Engine) onBlockChallenge(doubt bool) {
	ph := e.phase.(awaitingBlockChallenge)
	doubter := ph.queue[0]
	card, _ := ph.action.BlockCard()

	if !doubt {
		rest := append([]int(nil), ph.queue[1:]...)
		if len(rest) > 0 {
			ph.queue = rest
			e.phase = ph
			return
		}
		e.phase = nil
		e.publish(rules.Event{Type: rules.EventBlockStands, Player: ph.blocker, Target: ph.actor, Action: ph.action, Card: card})
		e.endTurn(ph.actor)
		return
	}

	e.phase = nil
	e.publish(rules.Event{Type: rules.EventChallengeDeclared, Player: doubter, Target: ph.blocker, Action: ph.action, Card: card})
	if e.players[ph.blocker].Holds(card) {
		e.phase = awaitingReveal{
			challenged: ph.blocker,
			card:       card,
			context:    RevealDoubtBlock,
			actor:      ph.actor,
			target:     ph.target,
			doubter:    doubter,
			action:     ph.action,
		}
		return
	}
	e.blockFails(ph.actor, ph.blocker, ph.target, ph.action)
}

func (e *Engine) onOpenBlock(block bool) {
	ph := e.phase.(awaitingOpenBlock)
	blocker := ph.queue[0]

	if block {
		card, _ := ph.action.BlockCard()
		e.publish(rules.Event{Type: rules.EventBlockDeclared, Player: blocker, Target: ph.actor, Action: ph.action, Card: card})
		e.phase = awaitingBlockChallenge{
			actor:   ph.actor,
			blocker: blocker,
			action:  ph.action,
			target:  rules.NoPlayer,
			queue:   []int{ph.actor},
		}
		return
	}

	rest := append([]int(nil), ph.queue[1:]...)
	if len(rest) > 0 {
		e.phase = awaitingOpenBlock{actor: ph.actor, action: ph.action, queue: rest}
		return
	}
	e.phase = nil
	e.applyEffect(ph.actor, rules.NoPlayer, ph.action)
	e.endTurn(ph.actor)
}

func (e *Engine) onReveal(reveal bool) {
	ph := e.phase.(awaitingReveal)
	e.phase = nil

	proven := reveal && e.players[ph.challenged].Holds(ph.card)
	if proven {
		e.publish(rules.Event{Type: rules.EventCardRevealed, Player: ph.challenged, Target: ph.doubter, Action: ph.action, Card: ph.card})
		e.exchange(ph.challenged, ph.card)
	} else {
		e.publish(rules.Event{Type: rules.EventRevealRefused, Player: ph.challenged, Target: ph.doubter, Action: ph.action, Card: ph.card})
	}

	switch ph.context {
	case RevealDoubtAction:
		if !proven {
			e.cancel(ph.actor, ph.action)
			return
		}
		if ph.action.CausesInfluenceLoss() {
			e.inflict(ph.actor, ph.doubter, ph.target)
			return
		}
		e.applyEffect(ph.actor, ph.target, ph.action)
		e.inflict(ph.actor, ph.doubter)

	case RevealDoubtBlock:
		if proven {
			e.publish(rules.Event{Type: rules.EventBlockStands, Player: ph.challenged, Target: ph.actor, Action: ph.action, Card: ph.card})
			e.inflict(ph.actor, ph.doubter)
			return
		}
		e.blockFails(ph.actor, ph.challenged, ph.target, ph.action)

	case RevealDoubtOpen:
		if !proven {
			e.cancel(ph.actor, ph.action)
			return
		}
		e.applyEffect(ph.actor, rules.NoPlayer, ph.action)
		e.inflict(ph.actor, ph.doubter)

	default:
		panic(fmt.Sprintf("game: unknown reveal context %q", ph.context))
	}
}

func (e *Engine) onDiscard(card int) {
	ph := e.phase.(awaitingDiscard)
	e.phase = nil
	e.discard(ph.player, card)
	e.inflict(ph.actor, ph.pending...)
}

// resolve carries out an action that nobody stopped.
func (e *Engine) resolve(actor, target int, a rules.Action) {
	if a.CausesInfluenceLoss() {
		e.publish(rules.Event{Type: rules.EventActionResolved, Player: actor, Target: target, Action: a})
		e.inflict(actor, target)
		return
	}
	e.applyEffect(actor, target, a)
	e.endTurn(actor)
}

// cancel voids an action whose claim was a bluff; the actor loses influence.
func (e *Engine) cancel(actor int, a rules.Action) {
	e.publish(rules.Event{Type: rules.EventActionCancelled, Player: actor, Target: rules.NoPlayer, Action: a})
	e.inflict(actor, actor)
}

// blockFails applies a coin action through a disproved block and punishes
// the blocker. Influence-loss actions are not applied on top of the penalty.
func (e *Engine) blockFails(actor, blocker, target int, a rules.Action) {
	card, _ := a.BlockCard()
	e.publish(rules.Event{Type: rules.EventBlockFailed, Player: blocker, Target: actor, Action: a, Card: card})
	if !a.CausesInfluenceLoss() {
		e.applyEffect(actor, target, a)
	}
	e.inflict(actor, blocker)
}

func (e *Engine) payCost(actor int, a rules.Action) {
	cost := a.Cost()
	if cost == 0 {
		return
	}
	p := e.players[actor]
	if p.Coins < cost {
		panic(fmt.Sprintf("game: %s cannot pay %d for %s with %d coins", p.Name, cost, a, p.Coins))
	}
	p.Coins -= cost
	e.publish(rules.Event{Type: rules.EventCostPaid, Player: actor, Target: rules.NoPlayer, Action: a, Amount: cost})
}

func (e *Engine) applyEffect(actor, target int, a rules.Action) {
	targetCoins := 0
	if target != rules.NoPlayer {
		targetCoins = e.players[target].Coins
	}
	gain, taken := a.Effect(targetCoins)
	e.players[actor].Coins += gain
	if target != rules.NoPlayer {
		e.players[target].Coins -= taken
	}
	e.publish(rules.Event{Type: rules.EventActionResolved, Player: actor, Target: target, Action: a, Amount: gain})
}

// exchange returns a proven card to the deck and draws its replacement.
func (e *Engine) exchange(idx int, card rules.Card) {
	p := e.players[idx]
	pos := rules.IndexOfCard(p.Hand, card)
	if pos < 0 {
		panic(fmt.Sprintf("game: %s cannot exchange %s it does not hold", p.Name, card))
	}
	p.Hand = append(p.Hand[:pos], p.Hand[pos+1:]...)
	replacement := e.deck.Exchange(card)
	p.Hand = append(p.Hand, replacement)
	e.publish(rules.Event{Type: rules.EventCardExchanged, Player: idx, Target: rules.NoPlayer, Card: card})
}

// inflict makes each listed player lose one influence in order. One-card
// players lose it automatically; players with more cards are asked which to
// give up. The turn advances once every loss is settled.
func (e *Engine) inflict(actor int, losers ...int) {
	queue := append([]int(nil), losers...)
	for len(queue) > 0 && !e.IsGameOver() {
		idx := queue[0]
		queue = queue[1:]
		switch n := len(e.players[idx].Hand); {
		case n == 0:
			continue
		case n == 1:
			e.discard(idx, 0)
		default:
			e.phase = awaitingDiscard{player: idx, pending: queue, actor: actor}
			return
		}
	}
	e.phase = nil
	e.endTurn(actor)
}

func (e *Engine) discard(idx, card int) {
	p := e.players[idx]
	if card < 0 || card >= len(p.Hand) {
		panic(fmt.Sprintf("game: %s has no card at index %d", p.Name, card))
	}
	lost := p.Hand[card]
	p.Hand = append(p.Hand[:card], p.Hand[card+1:]...)
	p.Discards = append(p.Discards, lost)
	e.publish(rules.Event{Type: rules.EventInfluenceLost, Player: idx, Target: rules.NoPlayer, Card: lost})

	if !p.Alive() {
		e.logger.Info("player eliminated",
			zap.String("player", p.Name),
			zap.Int("seat", idx),
			zap.Int("turn", e.turnNumber),
		)
		e.publish(rules.Event{Type: rules.EventPlayerEliminated, Player: idx, Target: rules.NoPlayer})
	}
}

// endTurn passes the turn to the next alive player after actor.
func (e *Engine) endTurn(actor int) {
	e.phase = nil
	if e.IsGameOver() {
		winner, _ := e.Winner()
		e.logger.Info("game over",
			zap.String("winner", e.players[winner].Name),
			zap.Int("turns", e.turnNumber),
		)
		e.publish(rules.Event{Type: rules.EventGameOver, Player: winner, Target: rules.NoPlayer})
		return
	}
	e.turn = e.nextAlive(actor)
	e.turnNumber++
	e.publish(rules.Event{Type: rules.EventTurnStarted, Player: e.turn, Target: rules.NoPlayer})
}

func (e *Engine) nextAlive(from int) int {
	n := len(e.players)
	for k := 1; k <= n; k++ {
		idx := (from + k) % n
		if e.players[idx].Alive() {
			return idx
		}
	}
	panic("game: no player left to take a turn")
}

func (e *Engine) aliveIndices() []int {
	alive := make([]int, 0, len(e.players))
	for i, p := range e.players {
		if p.Alive() {
			alive = append(alive, i)
		}
	}
	return alive
}

// othersAfter lists alive players other than actor in seating order,
// starting with the seat after actor.
func (e *Engine) othersAfter(actor int) []int {
	n := len(e.players)
	others := make([]int, 0, n-1)
	for k := 1; k < n; k++ {
		idx := (actor + k) % n
		if e.players[idx].Alive() {
			others = append(others, idx)
		}
	}
	return others
}

func (e *Engine) publish(evt rules.Event) {
	if evt.Timestamp.IsZero() {
		stamped := rules.NewEvent(evt.Type, e.turnNumber, evt.Player)
		evt.Turn = stamped.Turn
		evt.Timestamp = stamped.Timestamp
	}
	if ce := e.logger.Check(zap.DebugLevel, "game event"); ce != nil {
		ce.Write(
			zap.String("type", string(evt.Type)),
			zap.Int("turn", evt.Turn),
			zap.Int("player", evt.Player),
			zap.Int("target", evt.Target),
			zap.Stringer("action", evt.Action),
			zap.Stringer("card", evt.Card),
			zap.Int("amount", evt.Amount),
		)
	}
	e.events.Publish(evt)
}

// checkInvariants panics when the engine has reached a state no sequence of
// legal choices can produce.
func (e *Engine) checkInvariants() {
	cards := e.deck.Len()
	for _, p := range e.players {
		if p.Coins < 0 {
			panic(fmt.Sprintf("game: %s has negative coins (%d)", p.Name, p.Coins))
		}
		cards += len(p.Hand) + len(p.Discards)
	}
	if cards != e.totalCards {
		panic(fmt.Sprintf("game: card count changed from %d to %d", e.totalCards, cards))
	}
	if !e.IsGameOver() && !e.players[e.turn].Alive() {
		panic(fmt.Sprintf("game: turn is on eliminated player %s", e.players[e.turn].Name))
	}
}
