package game

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/stakehouse/blackjackd/internal/deck"
	"github.com/stakehouse/blackjackd/internal/ledger"
)

// Action is a player decision during the playing phase
type Action int

const (
	Hit Action = iota
	Stand
	Double
	Split
)

// String returns the wire representation of an action
func (a Action) String() string {
	switch a {
	case Hit:
		return "hit"
	case Stand:
		return "stand"
	case Double:
		return "double"
	case Split:
		return "split"
	default:
		return "unknown"
	}
}

// ParseAction maps a wire string to an Action. Unknown strings return
// false.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "hit":
		return Hit, true
	case "stand":
		return Stand, true
	case "double":
		return Double, true
	case "split":
		return Split, true
	default:
		return 0, false
	}
}

// Config holds the tunable timing and stake limits for an engine. The
// pauses exist for presentation pacing; tests set them to zero.
type Config struct {
	CountdownSeconds int
	DealPause        time.Duration
	DealerPause      time.Duration
	ResultsDelay     time.Duration
	MinBet           int64
	MaxBet           int64
}

// DefaultConfig mirrors the production pacing: an 8 second betting
// countdown, half-second card reveals, one second dealer draws and an
// 8 second results display.
func DefaultConfig() Config {
	return Config{
		CountdownSeconds: 8,
		DealPause:        500 * time.Millisecond,
		DealerPause:      time.Second,
		ResultsDelay:     8 * time.Second,
		MinBet:           1,
		MaxBet:           10000,
	}
}

// Engine drives one table's round state machine. Inbound events mutate
// the table through it; once dealing starts it runs autonomously through
// dealer play and settlement, emitting snapshots after every mutation.
//
// Invalid input (malformed amounts, unknown actions, acting out of turn,
// phase violations) is a silent no-op: the table state is never corrupted
// and nothing propagates to the caller.
type Engine struct {
	table  *Table
	ledger ledger.Ledger
	bus    EventBus
	clock  quartz.Clock
	logger *log.Logger
	cfg    Config
}

// NewEngine creates an engine for a table.
func NewEngine(table *Table, lgr ledger.Ledger, bus EventBus, clock quartz.Clock, logger *log.Logger, cfg Config) *Engine {
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = DefaultConfig().CountdownSeconds
	}
	if cfg.MinBet <= 0 {
		cfg.MinBet = 1
	}
	return &Engine{
		table:  table,
		ledger: lgr,
		bus:    bus,
		clock:  clock,
		logger: logger.WithPrefix("engine").With("table", table.ID),
		cfg:    cfg,
	}
}

// Table returns the engine's table.
func (e *Engine) Table() *Table {
	return e.table
}

// Snapshot returns the observer-safe view of the table.
func (e *Engine) Snapshot() Snapshot {
	e.table.mu.Lock()
	defer e.table.mu.Unlock()
	return e.table.snapshot()
}

// Sync returns the current snapshot and whether it is the given player's
// turn, for clients recovering state after a reconnect.
func (e *Engine) Sync(username string) (Snapshot, bool) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	yourTurn := false
	if t.Phase == Playing && t.turn >= 0 && t.turn < len(t.Seats) {
		if s := t.Seats[t.turn]; s != nil && s.Username == username {
			yourTurn = true
		}
	}
	return t.snapshot(), yourTurn
}

// Join seats a player at the given slot. No-op if the slot is out of
// range or taken, or the player is already seated.
func (e *Engine) Join(username string, slot int) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if username == "" || slot < 0 || slot >= len(t.Seats) {
		return
	}
	if t.Seats[slot] != nil {
		return
	}
	if _, seated := t.SeatOf(username); seated != nil {
		return
	}

	t.Seats[slot] = NewSeat(username)
	e.logger.Info("player joined", "player", username, "slot", slot)
	e.publishUpdate()
}

// Leave removes a player's seat entirely. If it was their turn the turn
// pointer advances past the now-empty slot; if the table empties during
// the betting countdown the countdown is cancelled.
func (e *Engine) Leave(username string) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, seat := t.SeatOf(username)
	if seat == nil {
		return
	}
	t.Seats[idx] = nil
	e.logger.Info("player left", "player", username, "slot", idx)

	if t.Phase == WaitingForBets && t.countdownTimer != nil && t.activeBetters() == 0 {
		e.stopCountdown()
	}

	e.publishUpdate()

	if t.Phase == Playing && t.turn == idx {
		e.advanceTurn()
	}
}

// PlaceBet stakes a wager for a seated player during the betting phase.
// The debit is checked atomically against the persisted balance before
// any state changes; a short balance rejects the bet without side
// effects. The first main bet on an idle table starts the countdown.
func (e *Engine) PlaceBet(ctx context.Context, username string, amount int64, kind BetKind) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Phase != WaitingForBets {
		return
	}
	if amount < e.cfg.MinBet || (e.cfg.MaxBet > 0 && amount > e.cfg.MaxBet) {
		return
	}
	_, seat := t.SeatOf(username)
	if seat == nil {
		return
	}
	// Side bets ride on a main bet: the seat has to be in the round for
	// them to ever be evaluated.
	if kind != BetMain && seat.Main.Bet == 0 {
		return
	}

	txKind := ledger.KindBet
	if kind != BetMain {
		txKind = ledger.KindSideBet
	}
	if err := e.ledger.Debit(ctx, username, amount, txKind); err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			e.logger.Error("bet debit failed", "player", username, "error", err)
		}
		return
	}

	switch kind {
	case BetMain:
		seat.Main.Bet += amount
		seat.Main.Status = StatusBetPlaced
	default:
		seat.SideBets[kind] += amount
	}
	e.logger.Info("bet placed", "player", username, "amount", amount, "kind", string(kind))
	e.publishUpdate()

	if t.countdownTimer == nil && t.activeBetters() > 0 {
		e.startCountdown()
	}
}

// Action applies a playing-phase decision for the player whose turn it
// is. Out-of-turn or out-of-phase actions are no-ops.
func (e *Engine) Action(ctx context.Context, username string, action Action) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Phase != Playing || t.turn < 0 || t.turn >= len(t.Seats) {
		return
	}
	seat := t.Seats[t.turn]
	if seat == nil || seat.Username != username {
		return
	}
	hand := seat.ActiveState()
	if hand.Status != StatusPlaying {
		return
	}

	switch action {
	case Hit:
		e.hit(seat, hand)
	case Stand:
		hand.Status = StatusStand
		e.publishUpdate()
		e.finishActiveHand(seat)
	case Double:
		e.double(ctx, seat, hand)
	case Split:
		e.split(ctx, seat)
	}
}

// hit draws into the active hand; 21 or bust auto-advances. Caller holds
// the table lock.
func (e *Engine) hit(seat *Seat, hand *HandState) {
	hand.Cards = append(hand.Cards, e.table.Shoe.Draw())
	e.publishPlayer(seat)
	e.publishUpdate()

	switch v := hand.Cards.Value(); {
	case v > 21:
		hand.Status = StatusBust
		e.publishUpdate()
		e.finishActiveHand(seat)
	case v == 21:
		hand.Status = StatusStand
		e.publishUpdate()
		e.finishActiveHand(seat)
	}
}

// double requires exactly two cards in the active hand and balance for a
// matching debit; it doubles the hand's bet, draws exactly one card and
// forces a stand. Caller holds the table lock.
func (e *Engine) double(ctx context.Context, seat *Seat, hand *HandState) {
	if len(hand.Cards) != 2 {
		return
	}
	if err := e.ledger.Debit(ctx, seat.Username, hand.Bet, ledger.KindDouble); err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			e.logger.Error("double debit failed", "player", seat.Username, "error", err)
		}
		return
	}

	hand.Bet *= 2
	hand.Cards = append(hand.Cards, e.table.Shoe.Draw())
	if hand.Cards.IsBust() {
		hand.Status = StatusBust
	} else {
		hand.Status = StatusStand
	}
	e.logger.Info("double", "player", seat.Username, "bet", hand.Bet)
	e.publishPlayer(seat)
	e.publishUpdate()
	e.finishActiveHand(seat)
}

// split requires an unsplit two-card pair of equal rank and balance for
// a second stake. One card moves to the new split hand, each hand draws
// a replacement, and the main hand plays first. Split hands are not
// eligible for the natural bonus. Caller holds the table lock.
func (e *Engine) split(ctx context.Context, seat *Seat) {
	if seat.Split != nil || seat.Active != HandMain {
		return
	}
	main := &seat.Main
	if len(main.Cards) != 2 || main.Cards[0].Rank != main.Cards[1].Rank {
		return
	}
	if err := e.ledger.Debit(ctx, seat.Username, main.Bet, ledger.KindSplit); err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			e.logger.Error("split debit failed", "player", seat.Username, "error", err)
		}
		return
	}

	split := &HandState{
		Cards:  Hand{main.Cards[1]},
		Bet:    main.Bet,
		Status: StatusPlaying,
	}
	main.Cards = Hand{main.Cards[0], e.table.Shoe.Draw()}
	split.Cards = append(split.Cards, e.table.Shoe.Draw())
	seat.Split = split
	seat.Active = HandMain

	e.logger.Info("split", "player", seat.Username, "bet", main.Bet)
	e.publishPlayer(seat)
	e.publishUpdate()
}

// finishActiveHand moves play onward after the active hand stands or
// busts: to the seat's unplayed split hand, else to the next seat.
// Caller holds the table lock.
func (e *Engine) finishActiveHand(seat *Seat) {
	if seat.Active == HandMain && seat.Split != nil && seat.Split.Status == StatusPlaying {
		seat.Active = HandSplit
		e.publish(YourTurnEvent{Table: e.table.ID, Username: seat.Username, timestamp: e.clock.Now()})
		return
	}
	e.advanceTurn()
}

// advanceTurn walks the turn pointer to the next playable seat, or hands
// the round to the dealer when none remain. Empty seats, seats without a
// bet and finished seats are skipped. Caller holds the table lock.
func (e *Engine) advanceTurn() {
	t := e.table
	for next := t.turn + 1; next < len(t.Seats); next++ {
		seat := t.Seats[next]
		if !seat.Playable() {
			continue
		}
		t.turn = next
		if seat.Main.Status == StatusPlaying {
			seat.Active = HandMain
		} else {
			seat.Active = HandSplit
		}
		e.publish(YourTurnEvent{Table: t.ID, Username: seat.Username, timestamp: e.clock.Now()})
		return
	}
	t.Phase = DealerTurn
	go e.runDealer()
}

// startCountdown begins the betting countdown. Caller holds the table
// lock.
func (e *Engine) startCountdown() {
	t := e.table
	t.countdownLeft = e.cfg.CountdownSeconds
	t.countdownTimer = e.clock.AfterFunc(time.Second, e.countdownTick)
	e.logger.Debug("countdown started", "seconds", t.countdownLeft)
}

// stopCountdown cancels a pending countdown. Caller holds the table
// lock.
func (e *Engine) stopCountdown() {
	t := e.table
	if t.countdownTimer != nil {
		t.countdownTimer.Stop()
		t.countdownTimer = nil
	}
	t.countdownLeft = 0
}

// countdownTick fires once per second while bets are open, broadcasting
// the remaining time. Reaching zero moves the table to dealing no matter
// how many seats have bet (minimum one, enforced at countdown start).
func (e *Engine) countdownTick() {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Phase != WaitingForBets || t.countdownTimer == nil {
		return
	}
	t.countdownLeft--
	e.publish(CountdownTickEvent{Table: t.ID, SecondsLeft: t.countdownLeft, timestamp: e.clock.Now()})

	if t.countdownLeft > 0 {
		t.countdownTimer = e.clock.AfterFunc(time.Second, e.countdownTick)
		return
	}
	t.countdownTimer = nil
	t.Phase = Dealing
	t.RoundID = uuid.NewString()
	e.publishUpdate()
	go e.runRound()
}

// runRound deals the opening cards and opens play. It runs on its own
// goroutine, re-acquiring the table lock for each step so that events
// arriving between steps are judged against the current phase and
// rejected cleanly.
func (e *Engine) runRound() {
	defer e.recovering("deal")
	ctx := context.Background()

	// First card to each active seat, one at a time.
	for i := range e.table.Seats {
		if e.dealToSeat(i) {
			e.pause(e.cfg.DealPause)
		}
	}

	// Dealer's up-card.
	e.withTable(func(t *Table) {
		t.Dealer = Hand{t.Shoe.Draw()}
		e.publishUpdate()
	})
	e.pause(e.cfg.DealPause)

	// Second card to each seat; naturals stand immediately and side bets
	// are scored now, before any player decision.
	for i := range e.table.Seats {
		if e.dealSecondToSeat(ctx, i) {
			e.pause(e.cfg.DealPause)
		}
	}

	// Dealer's hole card stays face down until all players act.
	e.withTable(func(t *Table) {
		t.Dealer = append(t.Dealer, deck.Hidden)
		t.Phase = Playing
		t.turn = -1
		e.publish(RoundStartedEvent{Snapshot: t.snapshot(), timestamp: e.clock.Now()})
		e.advanceTurn()
	})
}

// dealToSeat deals the first card to the seat at idx if it is in the
// round. Returns whether a card was dealt.
func (e *Engine) dealToSeat(idx int) bool {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.Seats[idx]
	if !seat.HasBet() {
		return false
	}
	seat.Main.Cards = Hand{t.Shoe.Draw()}
	e.publishUpdate()
	return true
}

// dealSecondToSeat completes the seat's opening hand, auto-standing
// naturals and settling side bets against the dealer up-card.
func (e *Engine) dealSecondToSeat(ctx context.Context, idx int) bool {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	seat := t.Seats[idx]
	if !seat.HasBet() || len(seat.Main.Cards) != 1 {
		return false
	}
	seat.Main.Cards = append(seat.Main.Cards, t.Shoe.Draw())
	if seat.Main.Cards.IsNatural() {
		seat.Main.Status = StatusStand
	} else {
		seat.Main.Status = StatusPlaying
	}

	e.settleSideBets(ctx, seat)
	e.publishPlayer(seat)
	e.publishUpdate()
	return true
}

// settleSideBets scores and pays the seat's side bets off the opening
// two cards and the dealer's up-card. Losing stakes were debited at bet
// time and need no further handling. Caller holds the table lock.
func (e *Engine) settleSideBets(ctx context.Context, seat *Seat) {
	if len(seat.SideBets) == 0 {
		return
	}
	c1, c2 := seat.Main.Cards[0], seat.Main.Cards[1]

	for kind, stake := range seat.SideBets {
		var outcome SideBetOutcome
		switch kind {
		case BetPair:
			outcome = EvalPerfectPairs(c1, c2)
		case BetTri:
			outcome = EvalTwentyOnePlusThree(c1, c2, e.table.Dealer[0])
		}
		if !outcome.Won() {
			seat.SideResults[kind] = "Loss"
			continue
		}
		winnings := stake * outcome.Multiplier
		if err := e.ledger.Credit(ctx, seat.Username, winnings, ledger.KindSidePayout); err != nil {
			e.logger.Error("side bet payout failed", "player", seat.Username, "error", err)
			continue
		}
		seat.SideResults[kind] = outcome.Label
		e.logger.Info("side bet paid", "player", seat.Username,
			"kind", string(kind), "label", outcome.Label, "winnings", winnings)
	}
}

// runDealer reveals the hole card, draws to 17 (standing on soft 17) and
// settles the round. Runs on its own goroutine with per-step locking.
func (e *Engine) runDealer() {
	defer e.recovering("dealer")

	e.pause(e.cfg.DealerPause)
	e.withTable(func(t *Table) {
		// Reveal: the face-down sentinel becomes a real draw.
		if len(t.Dealer) == 2 && t.Dealer[1].IsHidden() {
			t.Dealer[1] = t.Shoe.Draw()
		}
		e.publishUpdate()
	})

	for {
		done := false
		e.withTable(func(t *Table) {
			if t.Dealer.Value() >= 17 {
				done = true
			}
		})
		if done {
			break
		}
		e.pause(e.cfg.DealerPause)
		e.withTable(func(t *Table) {
			t.Dealer = append(t.Dealer, t.Shoe.Draw())
			e.publishUpdate()
		})
	}

	e.settle(context.Background())
}

// settle resolves every staked hand against the dealer, credits winnings
// through the ledger before the result broadcast, and schedules the
// table reset.
func (e *Engine) settle(ctx context.Context) {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	dealerTotal := t.Dealer.Value()
	dealerNatural := t.Dealer.IsNatural()

	for _, seat := range t.Seats {
		if !seat.HasBet() {
			continue
		}
		// A split disqualifies both hands from the natural bonus.
		e.settleHand(ctx, seat, &seat.Main, dealerTotal, dealerNatural, seat.Split == nil)
		if seat.Split != nil {
			e.settleHand(ctx, seat, seat.Split, dealerTotal, dealerNatural, false)
		}
	}

	t.Phase = Results
	e.publish(RoundResultEvent{Snapshot: t.snapshot(), timestamp: e.clock.Now()})
	e.clock.AfterFunc(e.cfg.ResultsDelay, e.reset)
}

// settleHand applies the payout table to one hand. The total return is
// credited in a single ledger write so observers never see a partial
// payout. Caller holds the table lock.
func (e *Engine) settleHand(ctx context.Context, seat *Seat, hand *HandState, dealerTotal int, dealerNatural, naturalEligible bool) {
	total := hand.Cards.Value()
	playerNatural := naturalEligible && hand.Cards.IsNatural()

	var winnings int64
	var kind string
	switch {
	case total > 21:
		hand.Result = "Loss"
	case playerNatural && !dealerNatural:
		hand.Result = "Blackjack!"
		winnings = hand.Bet * 5 / 2
		kind = ledger.KindBlackjack
	case dealerNatural && !playerNatural:
		hand.Result = "Loss"
	case dealerTotal > 21 || total > dealerTotal:
		hand.Result = "Win"
		winnings = hand.Bet * 2
		kind = ledger.KindWin
	case total == dealerTotal:
		hand.Result = "Push"
		winnings = hand.Bet
		kind = ledger.KindRefund
	default:
		hand.Result = "Loss"
	}

	if winnings == 0 {
		return
	}
	if err := e.ledger.Credit(ctx, seat.Username, winnings, kind); err != nil {
		e.logger.Error("payout failed", "player", seat.Username, "error", err)
		return
	}
	e.logger.Info("hand settled", "player", seat.Username,
		"result", hand.Result, "winnings", winnings)
}

// reset clears every seat's per-round state (seat assignments survive),
// clears the dealer hand and countdown, and reopens betting.
func (e *Engine) reset() {
	t := e.table
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Phase != Results {
		return
	}
	for _, seat := range t.Seats {
		if seat != nil {
			seat.ResetForNewRound()
		}
	}
	t.Dealer = nil
	t.RoundID = ""
	t.turn = 0
	e.stopCountdown()
	t.Phase = WaitingForBets
	e.publishUpdate()
}

// withTable runs fn under the table lock.
func (e *Engine) withTable(fn func(t *Table)) {
	e.table.mu.Lock()
	defer e.table.mu.Unlock()
	fn(e.table)
}

// pause blocks for d on the engine clock. Zero or negative pauses return
// immediately so tests can run the machine flat out.
func (e *Engine) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	done := make(chan struct{})
	timer := e.clock.AfterFunc(d, func() { close(done) })
	defer timer.Stop()
	<-done
}

// recovering keeps a panicking engine goroutine from taking the process
// (and the other tables) down with it.
func (e *Engine) recovering(stage string) {
	if r := recover(); r != nil {
		e.logger.Error("engine goroutine panicked", "stage", stage, "panic", r)
	}
}

func (e *Engine) publish(event Event) {
	e.bus.Publish(event)
}

// publishUpdate broadcasts a fresh snapshot. Caller holds the table
// lock.
func (e *Engine) publishUpdate() {
	e.publish(TableUpdateEvent{Snapshot: e.table.snapshot(), timestamp: e.clock.Now()})
}

// publishPlayer broadcasts one player's refreshed active hand. Caller
// holds the table lock.
func (e *Engine) publishPlayer(seat *Seat) {
	e.publish(PlayerUpdatedEvent{
		Table:     e.table.ID,
		Username:  seat.Username,
		Hand:      seat.ActiveState().Cards.Clone(),
		timestamp: e.clock.Now(),
	})
}
