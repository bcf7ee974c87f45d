package game

import "github.com/stakehouse/blackjackd/internal/deck"

// Hand is an ordered sequence of cards belonging to a player or the
// dealer.
type Hand []deck.Card

// Value computes the best blackjack total for the hand. Aces count
// eleven, then drop to one while the total busts and an ace-as-eleven
// remains. Hidden cards contribute nothing.
func (h Hand) Value() int {
	total := 0
	aces := 0
	for _, c := range h {
		total += c.Value()
		if c.IsAce() {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsNatural reports whether the hand is a two-card 21 (blackjack).
func (h Hand) IsNatural() bool {
	return len(h) == 2 && h.Value() == 21
}

// IsBust reports whether the hand total exceeds 21.
func (h Hand) IsBust() bool {
	return h.Value() > 21
}

// HasHidden reports whether the hand still holds a face-down card.
func (h Hand) HasHidden() bool {
	for _, c := range h {
		if c.IsHidden() {
			return true
		}
	}
	return false
}

// Clone returns a copy of the hand for use in snapshots and events.
func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}
