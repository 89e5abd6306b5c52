package game

import (
	"github.com/bluffhouse/coup-server/internal/game/rules"
)

// StartingCoins is the purse each player begins with.
const StartingCoins = 2

// StartingHand is the number of influence cards dealt to each player.
const StartingHand = 2

// Player is one seat at the table. Hand is secret; Discards are public.
type Player struct {
	Name     string
	Coins    int
	Hand     []rules.Card
	Discards []rules.Card
}

// NewPlayer creates a player with the starting purse and the given hand.
func NewPlayer(name string, hand ...rules.Card) *Player {
	return &Player{
		Name:  name,
		Coins: StartingCoins,
		Hand:  append([]rules.Card(nil), hand...),
	}
}

// Alive reports whether the player still holds influence.
func (p *Player) Alive() bool {
	return len(p.Hand) > 0
}

// Holds reports whether the player has at least one copy of card.
func (p *Player) Holds(card rules.Card) bool {
	return rules.ContainsCard(p.Hand, card)
}

func (p *Player) clone() *Player {
	return &Player{
		Name:     p.Name,
		Coins:    p.Coins,
		Hand:     append([]rules.Card(nil), p.Hand...),
		Discards: append([]rules.Card(nil), p.Discards...),
	}
}
