package game

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakehouse/blackjackd/internal/deck"
	"github.com/stakehouse/blackjackd/internal/ledger"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// recorder collects published events for assertions. OnEvent runs under
// the table lock so it only appends.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) byType(et EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.EventType() == et {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) turnOrder() []string {
	var order []string
	for _, ev := range r.byType(EventTypeYourTurn) {
		order = append(order, ev.(YourTurnEvent).Username)
	}
	return order
}

// testConfig runs the machine flat out: a one second countdown, no deal
// or dealer pauses, and a results delay long enough that the table never
// resets unless the test advances the clock to it.
func testConfig() Config {
	return Config{
		CountdownSeconds: 1,
		ResultsDelay:     time.Hour,
		MinBet:           1,
		MaxBet:           10000,
	}
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *ledger.Memory, *recorder, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	table := NewTable("table-1", 5, 1, rand.New(rand.NewSource(1)))
	bank := ledger.NewMemory()
	rec := &recorder{}
	bus := NewEventBus()
	bus.Subscribe(rec)
	eng := NewEngine(table, bank, bus, clock, log.New(io.Discard), cfg)
	return eng, bank, rec, clock
}

// loadShoe scripts the shoe to draw the given cards in order.
func loadShoe(eng *Engine, cards string) {
	eng.Table().Shoe.Load(deck.MustParseCards(cards))
}

// startRound fires the betting countdown and waits for the deal to
// finish. Bets must already be placed.
func startRound(t *testing.T, eng *Engine, clock *quartz.Mock, wantPhase string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	clock.Advance(time.Second).MustWait(ctx)
	require.Eventually(t, func() bool {
		return eng.Snapshot().Phase == wantPhase
	}, waitFor, tick)
}

func waitForPhase(t *testing.T, eng *Engine, phase string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return eng.Snapshot().Phase == phase
	}, waitFor, tick)
}

func balance(t *testing.T, bank *ledger.Memory, username string) int64 {
	t.Helper()
	b, err := bank.Balance(context.Background(), username)
	require.NoError(t, err)
	return b
}

func TestJoinAndLeave(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, testConfig())

	eng.Join("alice", 0)
	eng.Join("bob", 0)   // slot taken
	eng.Join("alice", 2) // already seated
	eng.Join("carol", 9) // out of range
	eng.Join("", 1)

	snap := eng.Snapshot()
	require.NotNil(t, snap.Seats[0])
	assert.Equal(t, "alice", snap.Seats[0].Username)
	assert.Nil(t, snap.Seats[1])
	assert.Nil(t, snap.Seats[2])

	eng.Leave("alice")
	eng.Leave("alice") // already gone
	assert.Nil(t, eng.Snapshot().Seats[0])
}

func TestPlaceBetValidation(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, _ := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 100)
	eng.Join("alice", 0)

	eng.PlaceBet(ctx, "bob", 50, BetMain)      // not seated
	eng.PlaceBet(ctx, "alice", 0, BetMain)     // below minimum
	eng.PlaceBet(ctx, "alice", -5, BetMain)    // negative
	eng.PlaceBet(ctx, "alice", 20000, BetMain) // above maximum
	eng.PlaceBet(ctx, "alice", 10, BetPair)    // side bet without a main bet
	eng.PlaceBet(ctx, "alice", 500, BetMain)   // more than the balance

	snap := eng.Snapshot()
	assert.Zero(t, snap.Seats[0].Bet)
	assert.Empty(t, snap.Seats[0].SideBets)
	assert.EqualValues(t, 100, balance(t, bank, "alice"))
	assert.Equal(t, "waiting_for_bets", snap.Phase)
	assert.Zero(t, snap.Countdown)
}

func TestLeavingLastBetterCancelsCountdown(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, _ := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 100)
	eng.Join("alice", 0)

	eng.PlaceBet(ctx, "alice", 50, BetMain)
	require.Equal(t, 1, eng.Snapshot().Countdown)

	eng.Leave("alice")
	snap := eng.Snapshot()
	assert.Zero(t, snap.Countdown)
	assert.Equal(t, "waiting_for_bets", snap.Phase)
}

func TestLeaveMidTurnPassesToNextPlayer(t *testing.T) {
	ctx := context.Background()
	eng, bank, rec, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	bank.SetBalance("bob", 1000)
	eng.Join("alice", 0)
	eng.Join("bob", 1)

	loadShoe(eng, "Th9h7c9d9cTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	eng.PlaceBet(ctx, "bob", 50, BetMain)
	startRound(t, eng, clock, "playing")
	require.Equal(t, 0, eng.Snapshot().TurnSeat)

	// Alice walks away on her turn; bob gets it immediately.
	eng.Leave("alice")
	snap := eng.Snapshot()
	assert.Nil(t, snap.Seats[0])
	assert.Equal(t, 1, snap.TurnSeat)

	eng.Action(ctx, "bob", Stand)
	waitForPhase(t, eng, "results")

	assert.Equal(t, []string{"alice", "bob"}, rec.turnOrder())

	snap = eng.Snapshot()
	assert.Equal(t, "Win", snap.Seats[1].Result) // 18 beats 17
	assert.EqualValues(t, 1050, balance(t, bank, "bob"))
	// The forfeited stake is never refunded.
	assert.EqualValues(t, 950, balance(t, bank, "alice"))
}

func TestLeaveMidTurnAloneRunsDealerOut(t *testing.T) {
	ctx := context.Background()
	eng, bank, rec, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	loadShoe(eng, "Th7c9dTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")
	require.Equal(t, 0, eng.Snapshot().TurnSeat)

	// The only player leaving on their turn still plays the dealer out.
	eng.Leave("alice")
	waitForPhase(t, eng, "results")

	snap := eng.Snapshot()
	assert.Nil(t, snap.Seats[0])
	require.NotNil(t, snap.DealerValue)
	assert.Equal(t, 17, *snap.DealerValue)
	require.Len(t, rec.byType(EventTypeRoundResult), 1)
	assert.EqualValues(t, 950, balance(t, bank, "alice"))
}

func TestCountdownTicksEverySecond(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CountdownSeconds = 3
	eng, bank, rec, clock := newTestEngine(t, cfg)
	bank.SetBalance("alice", 100)
	eng.Join("alice", 0)
	loadShoe(eng, "Th7c9dTh")

	eng.PlaceBet(ctx, "alice", 50, BetMain)
	assert.Equal(t, 3, eng.Snapshot().Countdown)

	for i := 0; i < 3; i++ {
		wctx, cancel := context.WithTimeout(ctx, waitFor)
		clock.Advance(time.Second).MustWait(wctx)
		cancel()
	}

	ticks := rec.byType(EventTypeCountdownTick)
	require.Len(t, ticks, 3)
	var secs []int
	for _, ev := range ticks {
		secs = append(secs, ev.(CountdownTickEvent).SecondsLeft)
	}
	assert.Equal(t, []int{2, 1, 0}, secs)

	waitForPhase(t, eng, "playing")
}

func TestNaturalAutoStands(t *testing.T) {
	ctx := context.Background()
	eng, bank, rec, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// Alice draws a natural, the dealer runs 5-10-9 and busts.
	loadShoe(eng, "As5hKdTh9c")
	eng.PlaceBet(ctx, "alice", 100, BetMain)

	// The natural never gets a turn: play passes straight to the dealer
	// and on to results.
	startRound(t, eng, clock, "results")
	assert.Empty(t, rec.turnOrder())

	snap := eng.Snapshot()
	assert.Equal(t, "Blackjack!", snap.Seats[0].Result)
	assert.Equal(t, "stand", snap.Seats[0].Status)

	// Natural pays 2.5x the stake, floored.
	assert.EqualValues(t, 1150, balance(t, bank, "alice"))

	// After the results delay the table reopens with the seat kept and
	// the round state cleared.
	wctx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	clock.Advance(time.Hour).MustWait(wctx)
	snap = eng.Snapshot()
	assert.Equal(t, "waiting_for_bets", snap.Phase)
	require.NotNil(t, snap.Seats[0])
	assert.Empty(t, snap.Seats[0].Hand)
	assert.Zero(t, snap.Seats[0].Bet)
	assert.Empty(t, snap.Dealer)
}

func TestPerfectPairPaysBeforePlay(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// A suited pair of jacks. Three decks make duplicate cards possible.
	loadShoe(eng, "Js5hJsTh9c")
	eng.PlaceBet(ctx, "alice", 10, BetMain)
	eng.PlaceBet(ctx, "alice", 10, BetPair)

	startRound(t, eng, clock, "playing")

	// The side bet settled during the deal: 25x on a 10 stake.
	assert.EqualValues(t, 1230, balance(t, bank, "alice"))
	snap := eng.Snapshot()
	assert.Equal(t, "Perfect Pair", snap.Seats[0].SideResults["pair"])

	eng.Action(ctx, "alice", Stand)
	waitForPhase(t, eng, "results")

	// Dealer ran 5-10-9 and bust, so the main bet pays 2x on top.
	assert.EqualValues(t, 1250, balance(t, bank, "alice"))
}

func TestDoubleDrawsOneCardAndDoublesBet(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// Alice 5-6 against a dealer 9, doubles into a ten, dealer stands
	// on 17.
	loadShoe(eng, "5h9c6dTh8d")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Double)
	waitForPhase(t, eng, "results")

	snap := eng.Snapshot()
	assert.Len(t, snap.Seats[0].Hand, 3)
	assert.EqualValues(t, 100, snap.Seats[0].Bet)
	assert.Equal(t, 21, snap.Seats[0].HandValue)
	assert.Equal(t, "Win", snap.Seats[0].Result)

	// 1000 - 50 - 50 + 200.
	assert.EqualValues(t, 1100, balance(t, bank, "alice"))
}

func TestDoubleWithoutFundsIsNoOp(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 50)
	eng.Join("alice", 0)

	loadShoe(eng, "5h9c6dTh8d")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Double)

	// Nothing happened: same bet, same two cards, still alice's turn.
	snap := eng.Snapshot()
	assert.EqualValues(t, 50, snap.Seats[0].Bet)
	assert.Len(t, snap.Seats[0].Hand, 2)
	assert.Equal(t, "playing", snap.Seats[0].Status)
	assert.Equal(t, 0, snap.TurnSeat)
	assert.EqualValues(t, 0, balance(t, bank, "alice"))
}

func TestDealerDrawsToSeventeen(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// Dealer opens 2, reveals 3, then draws 10 and 4 to reach 19.
	loadShoe(eng, "Th2c9d3dTh4s")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Stand)
	waitForPhase(t, eng, "results")

	snap := eng.Snapshot()
	require.NotNil(t, snap.DealerValue)
	assert.Equal(t, 19, *snap.DealerValue)
	assert.Len(t, snap.Dealer, 4)
	assert.Equal(t, "Push", snap.Seats[0].Result)
	assert.EqualValues(t, 1000, balance(t, bank, "alice"))
}

func TestBustPaysNothing(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	loadShoe(eng, "Th7c6dKhTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Hit)
	waitForPhase(t, eng, "results")

	snap := eng.Snapshot()
	assert.Equal(t, "bust", snap.Seats[0].Status)
	assert.Equal(t, "Loss", snap.Seats[0].Result)
	assert.EqualValues(t, 950, balance(t, bank, "alice"))
}

func TestSplitPlaysBothHands(t *testing.T) {
	ctx := context.Background()
	eng, bank, rec, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// A pair of eights against a dealer 7. After the split the main hand
	// draws a 3 and the split a 2; each then hits once.
	loadShoe(eng, "8s7c8d3h2c5hTdTh")
	eng.PlaceBet(ctx, "alice", 20, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Split)

	snap := eng.Snapshot()
	assert.Len(t, snap.Seats[0].Hand, 2)
	assert.EqualValues(t, 20, snap.Seats[0].Bet)
	require.NotNil(t, snap.Seats[0].Split)
	assert.Len(t, snap.Seats[0].Split.Hand, 2)
	assert.EqualValues(t, 20, snap.Seats[0].Split.Bet)
	assert.Equal(t, "main", snap.Seats[0].ActiveHand)

	// Main hand: 8+3, hit to 16, stand.
	eng.Action(ctx, "alice", Hit)
	eng.Action(ctx, "alice", Stand)

	// The turn moved to the split hand, not the dealer.
	assert.Equal(t, "playing", eng.Snapshot().Phase)
	assert.Equal(t, []string{"alice", "alice"}, rec.turnOrder())

	// Split hand: 8+2, hit to 20, stand.
	eng.Action(ctx, "alice", Hit)
	eng.Action(ctx, "alice", Stand)
	waitForPhase(t, eng, "results")

	snap = eng.Snapshot()
	assert.Equal(t, "Loss", snap.Seats[0].Result)
	assert.Equal(t, "Win", snap.Seats[0].Split.Result)

	// 1000 - 20 - 20 + 40.
	assert.EqualValues(t, 1000, balance(t, bank, "alice"))
}

func TestSplitRequiresEqualRankPair(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	// Ten and king total twenty but are not splittable.
	loadShoe(eng, "Th7cKdTh")
	eng.PlaceBet(ctx, "alice", 20, BetMain)
	startRound(t, eng, clock, "playing")

	eng.Action(ctx, "alice", Split)

	snap := eng.Snapshot()
	assert.Nil(t, snap.Seats[0].Split)
	assert.EqualValues(t, 980, balance(t, bank, "alice"))
}

func TestTurnOrderFollowsSeats(t *testing.T) {
	ctx := context.Background()
	eng, bank, rec, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	bank.SetBalance("bob", 1000)
	eng.Join("alice", 0)
	eng.Join("bob", 2)

	loadShoe(eng, "Th9h7c9d8cTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	eng.PlaceBet(ctx, "bob", 50, BetMain)
	startRound(t, eng, clock, "playing")

	// Bob cannot act before alice.
	eng.Action(ctx, "bob", Stand)
	assert.Equal(t, 0, eng.Snapshot().TurnSeat)

	eng.Action(ctx, "alice", Stand)
	eng.Action(ctx, "bob", Stand)
	waitForPhase(t, eng, "results")

	assert.Equal(t, []string{"alice", "bob"}, rec.turnOrder())

	snap := eng.Snapshot()
	assert.Equal(t, "Win", snap.Seats[0].Result)  // 19 beats 17
	assert.Equal(t, "Push", snap.Seats[2].Result) // 17 pushes
	assert.EqualValues(t, 1050, balance(t, bank, "alice"))
	assert.EqualValues(t, 1000, balance(t, bank, "bob"))
}

func TestSyncReportsTurn(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	bank.SetBalance("bob", 1000)
	eng.Join("alice", 0)
	eng.Join("bob", 1)

	loadShoe(eng, "Th9h7c9d8cTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	eng.PlaceBet(ctx, "bob", 50, BetMain)
	startRound(t, eng, clock, "playing")

	_, yourTurn := eng.Sync("alice")
	assert.True(t, yourTurn)
	_, yourTurn = eng.Sync("bob")
	assert.False(t, yourTurn)

	snap, _ := eng.Sync("observer")
	assert.Equal(t, "playing", snap.Phase)
}

func TestHoleCardStaysHiddenUntilDealerTurn(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, clock := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	loadShoe(eng, "Th7c9dTh")
	eng.PlaceBet(ctx, "alice", 50, BetMain)
	startRound(t, eng, clock, "playing")

	snap := eng.Snapshot()
	require.Len(t, snap.Dealer, 2)
	assert.True(t, snap.Dealer[1].IsHidden())
	assert.Nil(t, snap.DealerValue)

	eng.Action(ctx, "alice", Stand)
	waitForPhase(t, eng, "results")

	snap = eng.Snapshot()
	for _, c := range snap.Dealer {
		assert.False(t, c.IsHidden())
	}
	require.NotNil(t, snap.DealerValue)
	assert.Equal(t, 17, *snap.DealerValue)
}

func TestActionsOutsidePlayingPhaseAreIgnored(t *testing.T) {
	ctx := context.Background()
	eng, bank, _, _ := newTestEngine(t, testConfig())
	bank.SetBalance("alice", 1000)
	eng.Join("alice", 0)

	eng.Action(ctx, "alice", Hit)
	eng.Action(ctx, "alice", Stand)

	snap := eng.Snapshot()
	assert.Equal(t, "waiting_for_bets", snap.Phase)
	assert.Empty(t, snap.Seats[0].Hand)
}
