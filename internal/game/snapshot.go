package game

import "github.com/stakehouse/blackjackd/internal/deck"

// Snapshot is the observer-safe view of a table broadcast after every
// mutation. It exposes the shoe only as a remaining count and never the
// hidden hole card's value: the dealer value is absent while a hidden
// card is on the table.
type Snapshot struct {
	TableID     string          `json:"tableId"`
	RoundID     string          `json:"roundId,omitempty"`
	Phase       string          `json:"phase"`
	Seats       []*SeatSnapshot `json:"seats"`
	Dealer      []deck.Card     `json:"dealerHand"`
	DealerValue *int            `json:"dealerValue"`
	ShoeSize    int             `json:"shoeSize"`
	Countdown   int             `json:"countdown"`
	TurnSeat    int             `json:"turnSeat"`
}

// SeatSnapshot is the public view of one occupied slot. Empty slots
// appear as null in the snapshot's seat array.
type SeatSnapshot struct {
	Username    string            `json:"username"`
	Hand        []deck.Card       `json:"hand"`
	HandValue   int               `json:"handValue"`
	Bet         int64             `json:"bet"`
	Status      string            `json:"status"`
	Result      string            `json:"result,omitempty"`
	Split       *SplitSnapshot    `json:"split,omitempty"`
	ActiveHand  string            `json:"activeHand,omitempty"`
	SideBets    map[string]int64  `json:"sideBets,omitempty"`
	SideResults map[string]string `json:"sideResults,omitempty"`
}

// SplitSnapshot is the public view of a seat's split hand.
type SplitSnapshot struct {
	Hand      []deck.Card `json:"hand"`
	HandValue int         `json:"handValue"`
	Bet       int64       `json:"bet"`
	Status    string      `json:"status"`
	Result    string      `json:"result,omitempty"`
}

// snapshot builds the observer-safe view. Caller holds the table lock.
func (t *Table) snapshot() Snapshot {
	seats := make([]*SeatSnapshot, len(t.Seats))
	for i, s := range t.Seats {
		if s == nil {
			continue
		}
		seats[i] = snapshotSeat(s)
	}

	var dealerValue *int
	if len(t.Dealer) > 0 && !t.Dealer.HasHidden() {
		v := t.Dealer.Value()
		dealerValue = &v
	}

	turn := -1
	if t.Phase == Playing {
		turn = t.turn
	}

	return Snapshot{
		TableID:     t.ID,
		RoundID:     t.RoundID,
		Phase:       t.Phase.String(),
		Seats:       seats,
		Dealer:      t.Dealer.Clone(),
		DealerValue: dealerValue,
		ShoeSize:    t.Shoe.Remaining(),
		Countdown:   t.countdownLeft,
		TurnSeat:    turn,
	}
}

func snapshotSeat(s *Seat) *SeatSnapshot {
	snap := &SeatSnapshot{
		Username:  s.Username,
		Hand:      s.Main.Cards.Clone(),
		HandValue: s.Main.Cards.Value(),
		Bet:       s.Main.Bet,
		Status:    s.Main.Status.String(),
		Result:    s.Main.Result,
	}
	if s.Split != nil {
		snap.Split = &SplitSnapshot{
			Hand:      s.Split.Cards.Clone(),
			HandValue: s.Split.Cards.Value(),
			Bet:       s.Split.Bet,
			Status:    s.Split.Status.String(),
			Result:    s.Split.Result,
		}
		snap.ActiveHand = s.Active.String()
	}
	if len(s.SideBets) > 0 {
		snap.SideBets = make(map[string]int64, len(s.SideBets))
		for kind, amount := range s.SideBets {
			snap.SideBets[string(kind)] = amount
		}
	}
	if len(s.SideResults) > 0 {
		snap.SideResults = make(map[string]string, len(s.SideResults))
		for kind, label := range s.SideResults {
			snap.SideResults[string(kind)] = label
		}
	}
	return snap
}
