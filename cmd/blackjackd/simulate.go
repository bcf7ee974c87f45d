package main

import (
	"fmt"
	"time"

	"github.com/stakehouse/blackjackd/internal/simulator"
)

// SimulateCmd runs Monte Carlo rounds to estimate the house edge
type SimulateCmd struct {
	Rounds  int    `kong:"default='100000',help='Number of rounds to play'"`
	Workers int    `kong:"default='0',help='Worker goroutines (default: all CPUs)'"`
	Decks   int    `kong:"default='3',help='Decks in the shoe'"`
	Seed    *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func (c *SimulateCmd) Run() error {
	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	start := time.Now()
	results, err := simulator.Run(simulator.Config{
		Rounds:  c.Rounds,
		Workers: c.Workers,
		Decks:   c.Decks,
		Seed:    seed,
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("rounds:      %d (%.0f/sec)\n", results.Rounds, float64(results.Rounds)/elapsed.Seconds())
	fmt.Printf("wins:        %d (%.2f%%)\n", results.Wins, pct(results.Wins, results.Rounds))
	fmt.Printf("losses:      %d (%.2f%%)\n", results.Losses, pct(results.Losses, results.Rounds))
	fmt.Printf("pushes:      %d (%.2f%%)\n", results.Pushes, pct(results.Pushes, results.Rounds))
	fmt.Printf("blackjacks:  %d (%.2f%%)\n", results.Blackjacks, pct(results.Blackjacks, results.Rounds))
	fmt.Printf("player bust: %d (%.2f%%)\n", results.PlayerBust, pct(results.PlayerBust, results.Rounds))
	fmt.Printf("dealer bust: %d (%.2f%%)\n", results.DealerBust, pct(results.DealerBust, results.Rounds))
	fmt.Printf("house edge:  %.3f%%\n", results.HouseEdge()*100)
	return nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
