package server

// Note: table events (table_update, round_result, etc.) are defined in
// internal/game/events.go and are also sent as WebSocket messages

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeGetTableState MessageType = "get_table_state"
	MessageTypeJoinTable     MessageType = "join_table"
	MessageTypeLeaveTable    MessageType = "leave_table"
	MessageTypePlaceBet      MessageType = "place_bet"
	MessageTypePlayerAction  MessageType = "player_action"
	MessageTypeSyncState     MessageType = "sync_state"

	// Server to client messages
	MessageTypeTableUpdate   MessageType = "table_update"
	MessageTypeRoundStarted  MessageType = "round_started"
	MessageTypeYourTurn      MessageType = "your_turn"
	MessageTypeCountdownTick MessageType = "countdown_tick"
	MessageTypePlayerUpdated MessageType = "player_updated"
	MessageTypeRoundResult   MessageType = "round_result"
	MessageTypeSyncResponse  MessageType = "sync_response"
	MessageTypeError         MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
