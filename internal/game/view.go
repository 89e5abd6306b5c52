package game

import (
	"github.com/bluffhouse/coup-server/internal/game/rules"
)

// SpectatorIndex requests a view with every hand hidden.
const SpectatorIndex = -1

// PlayerView is one seat as seen by a particular viewer.
type PlayerView struct {
	Index              int      `json:"index"`
	Name               string   `json:"name"`
	Coins              int      `json:"coins"`
	InfluenceCount     int      `json:"influence_count"`
	Influences         []string `json:"influences"`
	RevealedInfluences []string `json:"revealed_influences"`
	IsEliminated       bool     `json:"is_eliminated"`
}

// GameView is the redacted snapshot a viewer is allowed to see. Only the
// viewer's own hand is filled in; discards are public.
type GameView struct {
	ViewerIndex     int            `json:"viewer_index"`
	CurrentTurn     int            `json:"current_turn"`
	TurnNumber      int            `json:"turn_number"`
	Phase           string         `json:"phase"`
	Players         []PlayerView   `json:"players"`
	PendingDecision *DecisionView  `json:"pending_decision"`
	DeckSize        int            `json:"deck_size"`
	CardsPerType    map[string]int `json:"cards_per_type"`
	GameOver        bool           `json:"game_over"`
	Winner          *int           `json:"winner,omitempty"`
	WinnerName      string         `json:"winner_name,omitempty"`
}

// ViewAs renders the game for viewer. A viewer outside the seating gets a
// spectator view. ViewAs never mutates the engine.
func (e *Engine) ViewAs(viewer int) *GameView {
	if viewer < 0 || viewer >= len(e.players) {
		viewer = SpectatorIndex
	}

	view := &GameView{
		ViewerIndex:  viewer,
		CurrentTurn:  e.turn,
		TurnNumber:   e.turnNumber,
		Phase:        e.Phase().String(),
		Players:      make([]PlayerView, len(e.players)),
		DeckSize:     e.deck.Len(),
		CardsPerType: rules.CardsPerType(),
		GameOver:     e.IsGameOver(),
	}

	for i, p := range e.players {
		influences := []string{}
		if i == viewer {
			influences = cardNames(p.Hand)
		}
		view.Players[i] = PlayerView{
			Index:              i,
			Name:               p.Name,
			Coins:              p.Coins,
			InfluenceCount:     len(p.Hand),
			Influences:         influences,
			RevealedInfluences: cardNames(p.Discards),
			IsEliminated:       !p.Alive(),
		}
	}

	if decision, ok := e.PendingDecision(); ok {
		dv := decision.View()
		view.PendingDecision = &dv
	}
	if winner, ok := e.Winner(); ok {
		view.Winner = &winner
		view.WinnerName = e.players[winner].Name
	}
	return view
}

// Me returns the viewer's own seat, or nil for spectators.
func (v *GameView) Me() *PlayerView {
	if v.ViewerIndex < 0 || v.ViewerIndex >= len(v.Players) {
		return nil
	}
	return &v.Players[v.ViewerIndex]
}

func cardNames(cards []rules.Card) []string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.String()
	}
	return names
}
