package game

// HandStatus tracks a single hand through a round
type HandStatus int

const (
	StatusWaiting HandStatus = iota
	StatusBetPlaced
	StatusPlaying
	StatusStand
	StatusBust
)

// String returns the wire representation of a hand status
func (s HandStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusBetPlaced:
		return "bet_placed"
	case StatusPlaying:
		return "playing"
	case StatusStand:
		return "stand"
	case StatusBust:
		return "bust"
	default:
		return "unknown"
	}
}

// ActiveHand points at whichever of a split player's hands may act.
// Meaningful only while a split exists.
type ActiveHand int

const (
	HandMain ActiveHand = iota
	HandSplit
)

// String returns the wire representation of the active hand pointer
func (a ActiveHand) String() string {
	if a == HandSplit {
		return "split"
	}
	return "main"
}

// HandState is one playable hand on a seat: its cards, its bet, and its
// per-round status and result label.
type HandState struct {
	Cards  Hand
	Bet    int64
	Status HandStatus
	Result string
}

// Seat is one table slot. A nil *Seat in the table's slot array is an
// empty seat; a non-nil Seat always has a username.
type Seat struct {
	Username    string
	Main        HandState
	Split       *HandState
	Active      ActiveHand
	SideBets    map[BetKind]int64
	SideResults map[BetKind]string
}

// NewSeat seats a player with everything reset to pre-round values.
func NewSeat(username string) *Seat {
	return &Seat{
		Username:    username,
		SideBets:    make(map[BetKind]int64),
		SideResults: make(map[BetKind]string),
	}
}

// HasBet reports whether the seat takes part in the current round.
func (s *Seat) HasBet() bool {
	return s != nil && s.Main.Bet > 0
}

// ActiveState returns the hand the pointer currently selects.
func (s *Seat) ActiveState() *HandState {
	if s.Active == HandSplit && s.Split != nil {
		return s.Split
	}
	return &s.Main
}

// Playable reports whether any of the seat's hands can still act.
func (s *Seat) Playable() bool {
	if s == nil || !s.HasBet() {
		return false
	}
	if s.Main.Status == StatusPlaying {
		return true
	}
	return s.Split != nil && s.Split.Status == StatusPlaying
}

// ResetForNewRound clears hands, bets, side bets, statuses and results.
// The seat assignment itself is preserved.
func (s *Seat) ResetForNewRound() {
	s.Main = HandState{}
	s.Split = nil
	s.Active = HandMain
	s.SideBets = make(map[BetKind]int64)
	s.SideResults = make(map[BetKind]string)
}
