// Package main plays many games against the production rule set in memory and
// prints the payout profile of cashing out at each target round.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/rng"
	"github.com/safe-solver/internal/stf"
)

const (
	playerAddress = "0x00000000000000000000000000000000005afe50"
	// keeps every pick exposed to losing
	veteranBalance = 1_000_000
)

// Result summarizes the games played for one target round
type Result struct {
	Target     int
	Games      int
	Wins       int
	TotalPaid  int64
	MaxPayout  int64
	Unfinished int
}

// WinRate is the share of games cashed out at the target
func (r Result) WinRate() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Games)
}

// AvgPayout is the mean payout of the games that were cashed out
func (r Result) AvgPayout() float64 {
	if r.Wins == 0 {
		return 0
	}
	return float64(r.TotalPaid) / float64(r.Wins)
}

// ExpectedValue is the mean payout over all games, losses included
func (r Result) ExpectedValue() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.TotalPaid) / float64(r.Games)
}

// Simulator replays games through a router
type Simulator struct {
	router    *stf.Router
	seed      string
	protected bool
}

// simulate plays games games that cash out once target is reached
func (s *Simulator) simulate(ctx context.Context, target, games int) (Result, error) {
	res := Result{Target: target, Games: games}

	store := stf.NewMemoryStore()
	accountID := store.AddAccount(playerAddress)

	balance := int64(veteranBalance)
	if s.protected {
		balance = 0
	}

	for g := 0; g < games; g++ {
		store.SetBalance(accountID, balance)

		payout, won, err := s.playGame(ctx, store, accountID, target, g)
		if err != nil {
			return res, err
		}
		if !won {
			continue
		}
		res.Wins++
		res.TotalPaid += payout
		if payout > res.MaxPayout {
			res.MaxPayout = payout
		}
	}
	return res, nil
}

func (s *Simulator) playGame(ctx context.Context, store *stf.MemoryStore, accountID int64, target, game int) (int64, bool, error) {
	gameSeed := fmt.Sprintf("%s:%d:%d", s.seed, target, game)
	step := 0
	send := func(raw string) (stf.Outcome, error) {
		in := stf.Input{
			ID:            fmt.Sprintf("%s:%d", gameSeed, step),
			BlockHeight:   1,
			SignerAddress: playerAddress,
			Raw:           raw,
			Random:        rng.New(gameSeed, step),
		}
		step++
		return s.router.Transition(ctx, store, in)
	}

	if out, err := send(`["initLevel"]`); err != nil {
		return 0, false, err
	} else if !out.Applied {
		return 0, false, fmt.Errorf("initLevel not applied: %s", out.Reason)
	}

	for {
		state, err := store.GetGameState(ctx, accountID)
		if err != nil {
			return 0, false, err
		}
		if state == nil || !state.IsOngoing {
			return 0, false, nil
		}
		if state.Round >= target {
			out, err := send(fmt.Sprintf(`["submitScore",%d]`, accountID))
			if err != nil {
				return 0, false, err
			}
			if !out.Applied {
				return 0, false, fmt.Errorf("submitScore not applied: %s", out.Reason)
			}
			return state.CurrentScore, true, nil
		}

		// the bad safe is drawn uniformly, so always opening safe 0 loses nothing
		if _, err := send(`["checkSafe",0]`); err != nil {
			return 0, false, err
		}
	}
}

func printResults(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "target\tgames\twins\twin rate\tavg payout\tmax payout\tEV/game\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f%%\t%.1f\t%d\t%.2f\t\n",
			r.Target, r.Games, r.Wins, r.WinRate()*100, r.AvgPayout(), r.MaxPayout, r.ExpectedValue())
	}
	return tw.Flush()
}

func main() {
	var (
		games     = flag.Int("games", 10000, "Games per target round")
		minTarget = flag.Int("from", 1, "First target round")
		maxTarget = flag.Int("to", 30, "Last target round")
		seed      = flag.String("seed", "simulate", "Seed all game randomness derives from")
		protected = flag.Bool("protected", false, "Play as a new account below the loss protection floor")
		logLevel  = flag.String("log-level", "warn", "Log level of the rules engine")
	)
	flag.Parse()

	logging.InitGlobalLogger(logging.ParseLogLevel(*logLevel), logging.FormatText)

	if *games <= 0 || *minTarget < 1 || *maxTarget < *minTarget {
		fmt.Fprintln(os.Stderr, "need -games > 0 and 1 <= -from <= -to")
		os.Exit(2)
	}

	sim := &Simulator{router: stf.DefaultRouter(), seed: *seed, protected: *protected}
	ctx := context.Background()

	results := make([]Result, 0, *maxTarget-*minTarget+1)
	for target := *minTarget; target <= *maxTarget; target++ {
		res, err := sim.simulate(ctx, target, *games)
		if err != nil {
			logging.WithError(err).WithField("target", target).Fatal("simulation failed")
		}
		results = append(results, res)
	}

	if err := printResults(os.Stdout, results); err != nil {
		logging.WithError(err).Fatal("failed to print results")
	}
}
