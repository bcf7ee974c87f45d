package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Ledger for tests and standalone play. Balances
// and the transaction log are held under a single mutex so check-and-debit
// is atomic.
type Memory struct {
	mu           sync.Mutex
	balances     map[string]int64
	transactions []Transaction
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// SetBalance creates or replaces a user's balance.
func (m *Memory) SetBalance(username string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[username] = balance
}

// CreateAccount provisions a user with a starting balance. Existing
// accounts are left untouched.
func (m *Memory) CreateAccount(_ context.Context, username string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[username]; !ok {
		m.balances[username] = balance
	}
	return nil
}

// Balance returns the current balance for a user.
func (m *Memory) Balance(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[username]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return balance, nil
}

// Debit atomically checks and subtracts amount from the user's balance.
func (m *Memory) Debit(_ context.Context, username string, amount int64, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	m.balances[username] = balance - amount
	m.record(username, -amount, kind)
	return nil
}

// Credit adds amount to the user's balance.
func (m *Memory) Credit(_ context.Context, username string, amount int64, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[username]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	m.balances[username] += amount
	m.record(username, amount, kind)
	return nil
}

// Transactions returns a copy of the transaction log.
func (m *Memory) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}

func (m *Memory) record(username string, change int64, kind string) {
	m.transactions = append(m.transactions, Transaction{
		ID:            uuid.NewString(),
		Username:      username,
		BalanceChange: change,
		Kind:          kind,
		CreatedAt:     time.Now(),
	})
}
