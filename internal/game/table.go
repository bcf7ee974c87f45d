package game

import (
	"math/rand"
	"sync"

	"github.com/coder/quartz"

	"github.com/stakehouse/blackjackd/internal/deck"
)

// Phase represents where a table is in its round state machine
type Phase int

const (
	WaitingForBets Phase = iota
	Dealing
	Playing
	DealerTurn
	Results
)

// String returns the wire representation of a phase
func (p Phase) String() string {
	switch p {
	case WaitingForBets:
		return "waiting_for_bets"
	case Dealing:
		return "dealing"
	case Playing:
		return "playing"
	case DealerTurn:
		return "dealer_turn"
	case Results:
		return "results"
	default:
		return "unknown"
	}
}

// Table is the per-table mutable aggregate: seated players, dealer hand,
// shoe, phase, countdown and turn pointer. It is the sole unit of mutual
// exclusion: every mutation, whether from a client event or an engine
// timer, runs under its mutex. Tables are independent of each other.
type Table struct {
	mu sync.Mutex

	ID      string
	Seats   []*Seat
	Dealer  Hand
	Shoe    *deck.Shoe
	Phase   Phase
	RoundID string

	turn           int
	countdownLeft  int
	countdownTimer *quartz.Timer
}

// NewTable creates a table with the given number of empty slots and a
// fresh shoe shuffled by the supplied RNG.
func NewTable(id string, slots, decks int, rng *rand.Rand) *Table {
	return &Table{
		ID:    id,
		Seats: make([]*Seat, slots),
		Shoe:  deck.NewShoe(decks, rng),
	}
}

// SeatOf returns the seat index and seat for a username, or -1 and nil.
// Caller holds the table lock.
func (t *Table) SeatOf(username string) (int, *Seat) {
	for i, s := range t.Seats {
		if s != nil && s.Username == username {
			return i, s
		}
	}
	return -1, nil
}

// Empty reports whether no one is seated. Caller holds the table lock.
func (t *Table) Empty() bool {
	for _, s := range t.Seats {
		if s != nil {
			return false
		}
	}
	return true
}

// activeBetters reports how many seats hold a main bet. Caller holds the
// table lock.
func (t *Table) activeBetters() int {
	n := 0
	for _, s := range t.Seats {
		if s.HasBet() {
			n++
		}
	}
	return n
}
