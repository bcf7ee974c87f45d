package server

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/stakehouse/blackjackd/internal/game"
	"github.com/stakehouse/blackjackd/internal/ledger"
)

// broadcaster delivers an outbound message to every connection watching a
// table. *Server implements it; tests substitute a recorder.
type broadcaster interface {
	BroadcastToTable(tableID string, msg *Message)
}

// accountCreator is the optional ledger capability to provision a player
// account with a starting balance on first join.
type accountCreator interface {
	CreateAccount(ctx context.Context, username string, balance int64) error
}

// GameTable represents a blackjack table managed by the server
type GameTable struct {
	ID       string
	engine   *game.Engine
	eventSub *tableEventSubscriber
}

// tableEventSubscriber forwards table events to connected clients. It
// runs under the table lock, so it only converts and enqueues; the
// connection write pumps do the actual network IO.
type tableEventSubscriber struct {
	tableID     string
	broadcaster broadcaster
	logger      *log.Logger
}

// OnEvent implements the game.EventSubscriber interface
func (tes *tableEventSubscriber) OnEvent(event game.Event) {
	msg, err := messageFromEvent(event)
	if err != nil {
		tes.logger.Error("failed to encode table event", "type", event.EventType(), "error", err)
		return
	}
	if msg == nil {
		return
	}
	tes.broadcaster.BroadcastToTable(tes.tableID, msg)
}

// GameService manages the set of tables and routes client requests to
// their engines. Engine-level rule violations (acting out of turn, bad
// amounts, phase mismatches) are silent no-ops; the service only errors
// on requests it cannot route at all.
type GameService struct {
	mu          sync.RWMutex
	tables      map[string]*GameTable
	bank        ledger.Ledger
	broadcaster broadcaster
	clock       quartz.Clock
	logger      *log.Logger
	extraSubs   []game.EventSubscriber
	startingBal int64
}

// NewGameService creates a game service backed by the given ledger.
func NewGameService(bank ledger.Ledger, b broadcaster, clock quartz.Clock, logger *log.Logger, startingBalance int64) *GameService {
	return &GameService{
		tables:      make(map[string]*GameTable),
		bank:        bank,
		broadcaster: b,
		clock:       clock,
		logger:      logger.WithPrefix("game"),
		startingBal: startingBalance,
	}
}

// AddEventSubscriber registers an extra subscriber (such as the Redis
// publisher) attached to every table created afterwards.
func (gs *GameService) AddEventSubscriber(sub game.EventSubscriber) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.extraSubs = append(gs.extraSubs, sub)
}

// CreateTable creates and registers a table from its configuration.
func (gs *GameService) CreateTable(cfg TableConfig) (*GameTable, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if _, exists := gs.tables[cfg.Name]; exists {
		return nil, fmt.Errorf("table already exists: %s", cfg.Name)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	table := game.NewTable(cfg.Name, cfg.Slots, cfg.Decks, rng)
	if cfg.ReshuffleUnder > 0 {
		table.Shoe.SetReshuffleThreshold(cfg.ReshuffleUnder)
	}

	bus := game.NewEventBus()
	engine := game.NewEngine(table, gs.bank, bus, gs.clock, gs.logger, game.Config{
		CountdownSeconds: cfg.CountdownSeconds,
		DealPause:        cfg.dealPause(),
		DealerPause:      cfg.dealerPause(),
		ResultsDelay:     time.Duration(cfg.ResultsSeconds) * time.Second,
		MinBet:           cfg.MinBet,
		MaxBet:           cfg.MaxBet,
	})

	gt := &GameTable{
		ID:     cfg.Name,
		engine: engine,
		eventSub: &tableEventSubscriber{
			tableID:     cfg.Name,
			broadcaster: gs.broadcaster,
			logger:      gs.logger,
		},
	}
	bus.Subscribe(gt.eventSub)
	for _, sub := range gs.extraSubs {
		bus.Subscribe(sub)
	}

	gs.tables[cfg.Name] = gt
	gs.logger.Info("table created", "table", cfg.Name, "slots", cfg.Slots, "decks", cfg.Decks)
	return gt, nil
}

// GetTable returns a table by ID, or nil.
func (gs *GameService) GetTable(tableID string) *GameTable {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tables[tableID]
}

// TableIDs returns the IDs of all registered tables.
func (gs *GameService) TableIDs() []string {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	ids := make([]string, 0, len(gs.tables))
	for id := range gs.tables {
		ids = append(ids, id)
	}
	return ids
}

// JoinTable seats a player, provisioning a ledger account with the
// configured starting balance when the ledger supports it.
func (gs *GameService) JoinTable(ctx context.Context, tableID, username string, slot int) error {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return fmt.Errorf("table not found: %s", tableID)
	}

	if creator, ok := gs.bank.(accountCreator); ok && gs.startingBal > 0 {
		if err := creator.CreateAccount(ctx, username, gs.startingBal); err != nil {
			return fmt.Errorf("provisioning account: %w", err)
		}
	}

	gt.engine.Join(username, slot)
	return nil
}

// LeaveTable removes a player from a table.
func (gs *GameService) LeaveTable(tableID, username string) error {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return fmt.Errorf("table not found: %s", tableID)
	}
	gt.engine.Leave(username)
	return nil
}

// PlaceBet stakes a wager of the given type ("main" when empty).
func (gs *GameService) PlaceBet(ctx context.Context, tableID, username string, amount int64, betType string) error {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return fmt.Errorf("table not found: %s", tableID)
	}

	if betType == "" {
		betType = string(game.BetMain)
	}
	kind, ok := game.ParseBetKind(betType)
	if !ok {
		return fmt.Errorf("unknown bet type: %s", betType)
	}

	gt.engine.PlaceBet(ctx, username, amount, kind)
	return nil
}

// PlayerAction applies a playing decision for a player.
func (gs *GameService) PlayerAction(ctx context.Context, tableID, username, action string) error {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return fmt.Errorf("table not found: %s", tableID)
	}

	act, ok := game.ParseAction(action)
	if !ok {
		return fmt.Errorf("unknown action: %s", action)
	}

	gt.engine.Action(ctx, username, act)
	return nil
}

// Snapshot returns the observer view of a table.
func (gs *GameService) Snapshot(tableID string) (game.Snapshot, error) {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return game.Snapshot{}, fmt.Errorf("table not found: %s", tableID)
	}
	return gt.engine.Snapshot(), nil
}

// Sync returns the recovery state for a reconnecting player.
func (gs *GameService) Sync(tableID, username string) (SyncResponseData, error) {
	gt := gs.GetTable(tableID)
	if gt == nil {
		return SyncResponseData{}, fmt.Errorf("table not found: %s", tableID)
	}
	snap, yourTurn := gt.engine.Sync(username)
	return SyncResponseData{Table: snap, YourTurn: yourTurn}, nil
}
