package game

import (
	"sort"

	"github.com/stakehouse/blackjackd/internal/deck"
)

// BetKind identifies a wager type on a seat
type BetKind string

const (
	BetMain BetKind = "main"
	BetPair BetKind = "pair"
	BetTri  BetKind = "21+3"
)

// ParseBetKind maps a wire string to a BetKind. Unknown strings return
// false.
func ParseBetKind(s string) (BetKind, bool) {
	switch BetKind(s) {
	case BetMain, BetPair, BetTri:
		return BetKind(s), true
	default:
		return "", false
	}
}

// SideBetOutcome is the scored result of a side bet. A zero multiplier
// means the stake is lost; the stake was already debited at bet time so
// no further handling is needed.
type SideBetOutcome struct {
	Label      string
	Multiplier int64
}

// Won reports whether the outcome pays anything.
func (o SideBetOutcome) Won() bool {
	return o.Multiplier > 0
}

// EvalPerfectPairs scores the "pair" side bet against the player's first
// two dealt cards. Identical suit pays 25x, same color 12x, mixed color
// 6x; anything else loses.
func EvalPerfectPairs(a, b deck.Card) SideBetOutcome {
	if a.Rank != b.Rank {
		return SideBetOutcome{}
	}
	switch {
	case a.Suit == b.Suit:
		return SideBetOutcome{Label: "Perfect Pair", Multiplier: 25}
	case a.IsRed() == b.IsRed():
		return SideBetOutcome{Label: "Colored Pair", Multiplier: 12}
	default:
		return SideBetOutcome{Label: "Mixed Pair", Multiplier: 6}
	}
}

// EvalTwentyOnePlusThree scores the "21+3" side bet over the player's
// first two cards plus the dealer's up-card, ranked as a three-card
// poker hand. Straights use the single linear rank order 2..A; the ace
// connects high only (Q-K-A yes, A-2-3 no).
func EvalTwentyOnePlusThree(a, b, up deck.Card) SideBetOutcome {
	cards := [3]deck.Card{a, b, up}

	trips := cards[0].Rank == cards[1].Rank && cards[1].Rank == cards[2].Rank
	flush := cards[0].Suit == cards[1].Suit && cards[1].Suit == cards[2].Suit

	ranks := []int{int(cards[0].Rank), int(cards[1].Rank), int(cards[2].Rank)}
	sort.Ints(ranks)
	straight := ranks[0]+1 == ranks[1] && ranks[1]+1 == ranks[2]

	switch {
	case trips && flush:
		return SideBetOutcome{Label: "Suited Trips", Multiplier: 100}
	case straight && flush:
		return SideBetOutcome{Label: "Straight Flush", Multiplier: 40}
	case trips:
		return SideBetOutcome{Label: "Three of a Kind", Multiplier: 30}
	case straight:
		return SideBetOutcome{Label: "Straight", Multiplier: 10}
	case flush:
		return SideBetOutcome{Label: "Flush", Multiplier: 5}
	default:
		return SideBetOutcome{}
	}
}
