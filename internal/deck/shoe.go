package deck

import "math/rand"

// Default shoe parameters. A fresh shoe is built whenever fewer than
// ReshuffleUnder cards remain, checked before each draw so a draw can
// never come up empty.
const (
	DefaultDecks   = 3
	ReshuffleUnder = 30
	cardsPerDeck   = 52
)

// Shoe is the drawable stack of cards for a table, composed of multiple
// shuffled decks. It is owned exclusively by one table and is not safe
// for concurrent use.
type Shoe struct {
	cards          []Card
	decks          int
	reshuffleUnder int
	rng            *rand.Rand
}

// NewShoe builds a shoe of decks*52 cards, Fisher-Yates shuffled with the
// given RNG. decks <= 0 falls back to DefaultDecks.
func NewShoe(decks int, rng *rand.Rand) *Shoe {
	if decks <= 0 {
		decks = DefaultDecks
	}
	s := &Shoe{
		cards:          make([]Card, 0, decks*cardsPerDeck),
		decks:          decks,
		reshuffleUnder: ReshuffleUnder,
		rng:            rng,
	}
	s.rebuild()
	return s
}

// SetReshuffleThreshold overrides the rebuild threshold. Used by tests
// and table configuration.
func (s *Shoe) SetReshuffleThreshold(n int) {
	s.reshuffleUnder = n
}

// rebuild refills the shoe with a fresh set of decks and shuffles it
func (s *Shoe) rebuild() {
	s.cards = s.cards[:0]
	for d := 0; d < s.decks; d++ {
		for suit := Clubs; suit <= Spades; suit++ {
			for rank := Two; rank <= Ace; rank++ {
				s.cards = append(s.cards, NewCard(rank, suit))
			}
		}
	}
	s.shuffle()
}

// shuffle randomizes the order of cards in the shoe
func (s *Shoe) shuffle() {
	for i := len(s.cards) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	}
}

// Draw pops the top card. The depletion check happens before the pop,
// never mid-draw, so Draw always succeeds.
func (s *Shoe) Draw() Card {
	if len(s.cards) < s.reshuffleUnder {
		s.rebuild()
	}
	card := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return card
}

// Remaining returns the number of cards left in the shoe. This is the
// only shoe detail snapshots may expose.
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// Load replaces the shoe contents with the given cards in draw order and
// disables the auto-rebuild so scripted draws stay deterministic. Test
// helper.
func (s *Shoe) Load(cards []Card) {
	s.cards = s.cards[:0]
	for i := len(cards) - 1; i >= 0; i-- {
		s.cards = append(s.cards, cards[i])
	}
	s.reshuffleUnder = 0
}
