package game

import (
	"fmt"

	"github.com/bluffhouse/coup-server/internal/game/rules"
)

// PhaseKind names the sub-transaction the game is waiting in.
type PhaseKind int

const (
	PhaseTurnStart PhaseKind = iota
	PhaseAwaitingTarget
	PhaseAwaitingDefense
	PhaseAwaitingActionChallenge
	PhaseAwaitingBlockChallenge
	PhaseAwaitingOpenBlock
	PhaseAwaitingDiscard
	PhaseAwaitingReveal
	PhaseGameOver
)

var phaseNames = map[PhaseKind]string{
	PhaseTurnStart:               "TURN_START",
	PhaseAwaitingTarget:          "AWAITING_TARGET",
	PhaseAwaitingDefense:         "AWAITING_DEFENSE",
	PhaseAwaitingActionChallenge: "AWAITING_ACTION_CHALLENGE",
	PhaseAwaitingBlockChallenge:  "AWAITING_BLOCK_CHALLENGE",
	PhaseAwaitingOpenBlock:       "AWAITING_OPEN_BLOCK",
	PhaseAwaitingDiscard:         "AWAITING_DISCARD",
	PhaseAwaitingReveal:          "AWAITING_REVEAL",
	PhaseGameOver:                "GAME_OVER",
}

func (p PhaseKind) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// RevealContext records which doubt opened a reveal window.
type RevealContext string

const (
	// RevealDoubtAction: the target doubted the actor's claimed card.
	RevealDoubtAction RevealContext = "doubt_action"
	// RevealDoubtBlock: the actor doubted the blocker's claimed card.
	RevealDoubtBlock RevealContext = "doubt_block"
	// RevealDoubtOpen: a bystander doubted an untargeted card action.
	RevealDoubtOpen RevealContext = "doubt_open"
)

// phase is the single active sub-transaction. A nil phase means the active
// player is about to pick an action.
type phase interface {
	kind() PhaseKind
}

type awaitingTarget struct {
	action rules.Action
}

type awaitingDefense struct {
	actor  int
	target int
	action rules.Action
}

type awaitingActionChallenge struct {
	actor  int
	action rules.Action
	queue  []int
}

type awaitingBlockChallenge struct {
	actor   int
	blocker int
	action  rules.Action
	// target is the attacked player, or rules.NoPlayer for open blocks.
	target int
	queue  []int
}

type awaitingOpenBlock struct {
	actor  int
	action rules.Action
	queue  []int
}

// awaitingDiscard holds the player choosing a card now and the losses still
// queued behind them. The turn passes to the player after actor once the
// queue drains.
type awaitingDiscard struct {
	player  int
	pending []int
	actor   int
}

type awaitingReveal struct {
	challenged int
	card       rules.Card
	context    RevealContext
	actor      int
	target     int
	doubter    int
	action     rules.Action
}

func (awaitingTarget) kind() PhaseKind          { return PhaseAwaitingTarget }
func (awaitingDefense) kind() PhaseKind         { return PhaseAwaitingDefense }
func (awaitingActionChallenge) kind() PhaseKind { return PhaseAwaitingActionChallenge }
func (awaitingBlockChallenge) kind() PhaseKind  { return PhaseAwaitingBlockChallenge }
func (awaitingOpenBlock) kind() PhaseKind       { return PhaseAwaitingOpenBlock }
func (awaitingDiscard) kind() PhaseKind         { return PhaseAwaitingDiscard }
func (awaitingReveal) kind() PhaseKind          { return PhaseAwaitingReveal }
