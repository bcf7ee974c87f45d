package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/stakehouse/blackjackd/internal/deck"
	"github.com/stakehouse/blackjackd/internal/game"
)

// Config controls a Monte Carlo run.
type Config struct {
	Rounds  int
	Workers int
	Decks   int
	Seed    int64
}

// Results aggregates the outcomes of a run, staked at one unit per
// round. NetUnits is the player's net outcome, so a negative value is
// the house's take.
type Results struct {
	Rounds     int
	Wins       int
	Losses     int
	Pushes     int
	Blackjacks int
	PlayerBust int
	DealerBust int
	NetUnits   float64
}

// HouseEdge returns the house's expected take per unit staked.
func (r Results) HouseEdge() float64 {
	if r.Rounds == 0 {
		return 0
	}
	return -r.NetUnits / float64(r.Rounds)
}

// workerResult holds the results from a Monte Carlo worker
type workerResult struct {
	rounds     int
	wins       int
	losses     int
	pushes     int
	blackjacks int
	playerBust int
	dealerBust int
	netUnits   float64
}

// Run plays cfg.Rounds of heads-up blackjack against the dealer, split
// across parallel workers, and aggregates the outcomes. The player
// follows a fixed drawing rule (hit below 17, hit soft 17); naturals
// pay 3:2.
func Run(cfg Config) (Results, error) {
	if cfg.Rounds <= 0 {
		return Results{}, fmt.Errorf("rounds must be positive")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.Rounds {
		workers = cfg.Rounds
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	perWorker := cfg.Rounds / workers
	remainder := cfg.Rounds % workers

	g, _ := errgroup.WithContext(context.Background())
	results := make(chan workerResult, workers)

	for w := 0; w < workers; w++ {
		workerRounds := perWorker
		if w < remainder {
			workerRounds++
		}

		// Independent RNG per worker to avoid contention
		workerSeed := rng.Int63()

		g.Go(func() error {
			workerRng := rand.New(rand.NewSource(workerSeed))
			results <- runWorker(workerRounds, cfg.Decks, workerRng)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Results{}, err
	}
	close(results)

	var total Results
	for r := range results {
		total.Rounds += r.rounds
		total.Wins += r.wins
		total.Losses += r.losses
		total.Pushes += r.pushes
		total.Blackjacks += r.blackjacks
		total.PlayerBust += r.playerBust
		total.DealerBust += r.dealerBust
		total.NetUnits += r.netUnits
	}
	return total, nil
}

func runWorker(rounds, decks int, rng *rand.Rand) workerResult {
	shoe := deck.NewShoe(decks, rng)
	var r workerResult
	for i := 0; i < rounds; i++ {
		playRound(shoe, &r)
	}
	return r
}

func playRound(shoe *deck.Shoe, r *workerResult) {
	r.rounds++

	player := game.Hand{shoe.Draw(), shoe.Draw()}
	dealer := game.Hand{shoe.Draw(), shoe.Draw()}

	playerNatural := player.IsNatural()
	dealerNatural := dealer.IsNatural()
	switch {
	case playerNatural && dealerNatural:
		r.pushes++
		return
	case playerNatural:
		r.blackjacks++
		r.wins++
		r.netUnits += 1.5
		return
	case dealerNatural:
		r.losses++
		r.netUnits--
		return
	}

	for hits(player) {
		player = append(player, shoe.Draw())
	}
	if player.IsBust() {
		r.playerBust++
		r.losses++
		r.netUnits--
		return
	}

	for dealer.Value() < 17 {
		dealer = append(dealer, shoe.Draw())
	}
	if dealer.IsBust() {
		r.dealerBust++
		r.wins++
		r.netUnits++
		return
	}

	switch pv, dv := player.Value(), dealer.Value(); {
	case pv > dv:
		r.wins++
		r.netUnits++
	case pv < dv:
		r.losses++
		r.netUnits--
	default:
		r.pushes++
	}
}

// hits is the player's fixed drawing rule: take a card below 17 and on
// soft 17.
func hits(h game.Hand) bool {
	v := h.Value()
	if v < 17 {
		return true
	}
	return v == 17 && isSoft(h)
}

// isSoft reports whether an ace is still counted as eleven.
func isSoft(h game.Hand) bool {
	low := 0
	aces := 0
	for _, c := range h {
		if c.IsAce() {
			aces++
			low++
		} else {
			low += c.Value()
		}
	}
	return aces > 0 && low+10 <= 21
}
