package rules

import (
	"fmt"
	"strings"
)

// Card identifies an influence card. Cards are compared by type only: two
// Dukes are interchangeable.
type Card int

const (
	Duke Card = iota + 1
	Assassin
	Captain
	Countess
)

var cardNames = map[Card]string{
	Duke:     "Duke",
	Assassin: "Assassin",
	Captain:  "Captain",
	Countess: "Countess",
}

var cardDescriptions = map[Card]string{
	Duke:     "Collect 3 coins from the treasury; blocks foreign aid",
	Assassin: "Pay 3 coins to make a player lose an influence",
	Captain:  "Steal up to 2 coins from another player; blocks stealing",
	Countess: "Blocks assassination",
}

// copiesPerCard is the number of copies of each card in the standard deck.
const copiesPerCard = 3

// AllCards lists the influence cards in catalog order.
func AllCards() []Card {
	return []Card{Duke, Assassin, Captain, Countess}
}

func (c Card) String() string {
	if name, ok := cardNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CARD_%d", int(c))
}

// Valid reports whether c is a known influence card.
func (c Card) Valid() bool {
	_, ok := cardNames[c]
	return ok
}

// Description returns the rules text shown to players.
func (c Card) Description() string {
	return cardDescriptions[c]
}

// KeepValue ranks how much a card is worth holding on to. Bots discard the
// card with the lowest value first.
func (c Card) KeepValue() int {
	switch c {
	case Duke:
		return 4
	case Assassin, Captain:
		return 3
	case Countess:
		return 2
	default:
		return 0
	}
}

// GrantedAction returns the action a holder of c may claim, if any.
func (c Card) GrantedAction() (Action, bool) {
	for _, a := range AllActions() {
		if claimed, ok := a.ClaimedCard(); ok && claimed == c {
			return a, true
		}
	}
	return 0, false
}

// MarshalText encodes the card by name.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown card %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card name.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard resolves a card by name, ignoring case.
func ParseCard(name string) (Card, error) {
	for card, n := range cardNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return card, nil
		}
	}
	return 0, fmt.Errorf("unknown card %q", name)
}

// CardsPerType returns how many copies of each card exist in the standard deck,
// keyed by card name.
func CardsPerType() map[string]int {
	counts := make(map[string]int, len(cardNames))
	for _, c := range AllCards() {
		counts[c.String()] = copiesPerCard
	}
	return counts
}

// ContainsCard reports whether hand holds at least one copy of card.
func ContainsCard(hand []Card, card Card) bool {
	return IndexOfCard(hand, card) >= 0
}

// IndexOfCard returns the position of the first copy of card in hand, or -1.
func IndexOfCard(hand []Card, card Card) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}
	return -1
}
