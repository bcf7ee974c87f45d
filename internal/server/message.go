package server

import (
	"encoding/json"
	"time"

	"github.com/stakehouse/blackjackd/internal/deck"
	"github.com/stakehouse/blackjackd/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type GetTableStateData struct {
	TableID string `json:"tableId"`
}

type JoinTableData struct {
	TableID   string `json:"tableId"`
	Username  string `json:"username"`
	SlotIndex int    `json:"slotIndex"`
}

type LeaveTableData struct {
	TableID  string `json:"tableId"`
	Username string `json:"username"`
}

type PlaceBetData struct {
	TableID  string `json:"tableId"`
	Username string `json:"username"`
	Amount   int64  `json:"amount"`
	BetType  string `json:"type,omitempty"` // "main" when absent
}

type PlayerActionData struct {
	TableID  string `json:"tableId"`
	Username string `json:"username"`
	Action   string `json:"action"`
}

type SyncStateData struct {
	TableID  string `json:"tableId"`
	Username string `json:"username"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type YourTurnData struct {
	TableID  string `json:"tableId"`
	Username string `json:"username"`
}

type CountdownTickData struct {
	TableID     string `json:"tableId"`
	SecondsLeft int    `json:"secondsLeft"`
}

type PlayerUpdatedData struct {
	TableID   string      `json:"tableId"`
	Username  string      `json:"username"`
	Hand      []deck.Card `json:"hand"`
	HandValue int         `json:"handValue"`
}

type SyncResponseData struct {
	Table    game.Snapshot `json:"table"`
	YourTurn bool          `json:"yourTurn"`
}

// messageFromEvent converts a table event into its outbound wire message.
func messageFromEvent(event game.Event) (*Message, error) {
	switch e := event.(type) {
	case game.TableUpdateEvent:
		return NewMessage(MessageTypeTableUpdate, e.Snapshot)
	case game.RoundStartedEvent:
		return NewMessage(MessageTypeRoundStarted, e.Snapshot)
	case game.RoundResultEvent:
		return NewMessage(MessageTypeRoundResult, e.Snapshot)
	case game.YourTurnEvent:
		return NewMessage(MessageTypeYourTurn, YourTurnData{
			TableID:  e.Table,
			Username: e.Username,
		})
	case game.CountdownTickEvent:
		return NewMessage(MessageTypeCountdownTick, CountdownTickData{
			TableID:     e.Table,
			SecondsLeft: e.SecondsLeft,
		})
	case game.PlayerUpdatedEvent:
		return NewMessage(MessageTypePlayerUpdated, PlayerUpdatedData{
			TableID:   e.Table,
			Username:  e.Username,
			Hand:      e.Hand,
			HandValue: game.Hand(e.Hand).Value(),
		})
	default:
		return nil, nil
	}
}
