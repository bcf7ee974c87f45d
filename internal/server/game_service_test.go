package server

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakehouse/blackjackd/internal/ledger"
)

// fakeBroadcaster records messages instead of writing to sockets.
type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []*Message
}

func (f *fakeBroadcaster) BroadcastToTable(tableID string, msg *Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeBroadcaster) byType(mt MessageType) []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Message
	for _, msg := range f.messages {
		if msg.Type == mt {
			out = append(out, msg)
		}
	}
	return out
}

func newTestService(t *testing.T) (*GameService, *ledger.Memory, *fakeBroadcaster) {
	t.Helper()
	bank := ledger.NewMemory()
	fb := &fakeBroadcaster{}
	gs := NewGameService(bank, fb, quartz.NewMock(t), log.New(io.Discard), 1000)

	_, err := gs.CreateTable(TableConfig{
		Name:             "main",
		Slots:            5,
		Decks:            3,
		CountdownSeconds: 8,
		MinBet:           1,
		MaxBet:           10000,
	})
	require.NoError(t, err)
	return gs, bank, fb
}

func TestCreateTableRejectsDuplicates(t *testing.T) {
	gs, _, _ := newTestService(t)

	_, err := gs.CreateTable(TableConfig{Name: "main", Slots: 5, Decks: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, []string{"main"}, gs.TableIDs())
}

func TestJoinTableProvisionsAccount(t *testing.T) {
	ctx := context.Background()
	gs, bank, fb := newTestService(t)

	require.NoError(t, gs.JoinTable(ctx, "main", "alice", 0))

	b, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, b)

	// Joining broadcast a table update with the new seat.
	updates := fb.byType(MessageTypeTableUpdate)
	require.NotEmpty(t, updates)

	// Rejoining elsewhere must not reset an existing balance.
	require.NoError(t, bank.Debit(ctx, "alice", 400, ledger.KindBet))
	require.NoError(t, gs.JoinTable(ctx, "main", "alice", 1))
	b, err = bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 600, b)
}

func TestServiceRoutesRequireKnownTable(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newTestService(t)

	assert.Error(t, gs.JoinTable(ctx, "ghost", "alice", 0))
	assert.Error(t, gs.LeaveTable("ghost", "alice"))
	assert.Error(t, gs.PlaceBet(ctx, "ghost", "alice", 10, "main"))
	assert.Error(t, gs.PlayerAction(ctx, "ghost", "alice", "hit"))

	_, err := gs.Snapshot("ghost")
	assert.Error(t, err)
	_, err = gs.Sync("ghost", "alice")
	assert.Error(t, err)
}

func TestPlaceBetDefaultsToMainAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	gs, bank, fb := newTestService(t)
	require.NoError(t, gs.JoinTable(ctx, "main", "alice", 0))

	require.NoError(t, gs.PlaceBet(ctx, "main", "alice", 50, ""))

	snap, err := gs.Snapshot("main")
	require.NoError(t, err)
	require.NotNil(t, snap.Seats[0])
	assert.EqualValues(t, 50, snap.Seats[0].Bet)
	assert.Equal(t, "bet_placed", snap.Seats[0].Status)

	b, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 950, b)

	assert.NotEmpty(t, fb.byType(MessageTypeTableUpdate))

	require.Error(t, gs.PlaceBet(ctx, "main", "alice", 10, "insurance"))
}

func TestPlayerActionRejectsUnknownVerb(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newTestService(t)
	require.NoError(t, gs.JoinTable(ctx, "main", "alice", 0))

	err := gs.PlayerAction(ctx, "main", "alice", "surrender")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")

	// A valid verb out of phase routes fine and is a silent no-op.
	require.NoError(t, gs.PlayerAction(ctx, "main", "alice", "hit"))
	snap, err := gs.Snapshot("main")
	require.NoError(t, err)
	assert.Equal(t, "waiting_for_bets", snap.Phase)
}

func TestSyncReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	gs, _, _ := newTestService(t)
	require.NoError(t, gs.JoinTable(ctx, "main", "alice", 0))

	sync, err := gs.Sync("main", "alice")
	require.NoError(t, err)
	assert.Equal(t, "main", sync.Table.TableID)
	assert.False(t, sync.YourTurn)
}
