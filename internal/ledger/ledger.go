package ledger

import (
	"context"
	"errors"
	"time"
)

// Transaction kinds recorded against the ledger. One entry is written per
// balance-affecting event.
const (
	KindBet        = "bet"
	KindSideBet    = "side_bet"
	KindDouble     = "double"
	KindSplit      = "split"
	KindWin        = "win"
	KindBlackjack  = "blackjack"
	KindRefund     = "refund"
	KindSidePayout = "side_payout"
)

var (
	// ErrInsufficientFunds is returned by Debit when the persisted
	// balance cannot cover the amount. No state is changed.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrUnknownUser is returned when the username has no account.
	ErrUnknownUser = errors.New("ledger: unknown user")
)

// Transaction is an immutable ledger entry, append-only, used for audit
// and leaderboard aggregation outside this service.
type Transaction struct {
	ID            string
	Username      string
	BalanceChange int64
	Kind          string
	CreatedAt     time.Time
}

// Ledger is the external user/balance collaborator consumed by the game
// engine. Debits are checked atomically against the current persisted
// balance; implementations must not leave a balance debited without the
// corresponding transaction record.
type Ledger interface {
	// Balance returns the current balance for a user.
	Balance(ctx context.Context, username string) (int64, error)

	// Debit atomically checks and subtracts amount from the user's
	// balance, recording a transaction. Returns ErrInsufficientFunds
	// without side effects when the balance is short.
	Debit(ctx context.Context, username string, amount int64, kind string) error

	// Credit adds amount to the user's balance and records a
	// transaction.
	Credit(ctx context.Context, username string, amount int64, kind string) error
}
