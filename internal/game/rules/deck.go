package rules

import (
	"math/rand"
)

// Deck is the shared face-down pile. All shuffling goes through the injected
// random source so games replay identically from a seed.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a deck holding cards in the given order (top is last).
// A nil rng is replaced by a source seeded with 1.
func NewDeck(cards []Card, rng *rand.Rand) *Deck {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Deck{
		cards: append([]Card(nil), cards...),
		rng:   rng,
	}
}

// NewStandardDeck creates the shuffled 12 card deck: three copies of each
// influence card.
func NewStandardDeck(rng *rand.Rand) *Deck {
	cards := make([]Card, 0, len(cardNames)*copiesPerCard)
	for _, c := range AllCards() {
		for i := 0; i < copiesPerCard; i++ {
			cards = append(cards, c)
		}
	}
	d := NewDeck(cards, rng)
	d.Shuffle()
	return d
}

// Len returns the number of cards left.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Shuffle reorders the remaining cards.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw removes the top card.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return 0, false
	}
	top := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return top, true
}

// Return puts a card back on top of the deck.
func (d *Deck) Return(c Card) {
	d.cards = append(d.cards, c)
}

// Exchange returns c to the deck, reshuffles and draws a replacement. With an
// otherwise empty deck the replacement is c itself.
func (d *Deck) Exchange(c Card) Card {
	d.Return(c)
	d.Shuffle()
	replacement, _ := d.Draw()
	return replacement
}

// Cards returns a copy of the remaining cards, bottom first.
func (d *Deck) Cards() []Card {
	return append([]Card(nil), d.cards...)
}

// Counts returns the remaining copies per card.
func (d *Deck) Counts() map[Card]int {
	counts := make(map[Card]int, len(cardNames))
	for _, c := range d.cards {
		counts[c]++
	}
	return counts
}
