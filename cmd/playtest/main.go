// Command playtest plays complete games against a running ageguess server
// and checks the leaderboard afterwards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/pflag"

	"github.com/okian/ageguess/internal/playtest"
	"github.com/okian/ageguess/pkg/logger"
)

// Default configuration constants.
const (
	defaultGames       = 50
	defaultTopN        = 10
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	fs := pflag.NewFlagSet("playtest", pflag.ContinueOnError)
	var (
		baseURL = fs.StringP("url", "u", "http://localhost:8080", "base URL of the server")
		games   = fs.IntP("games", "g", defaultGames, "number of games to play")
		topN    = fs.IntP("top", "t", defaultTopN, "number of leaderboard entries to fetch")
		workers = fs.IntP("workers", "w", runtime.NumCPU()*defaultWorkers, "number of concurrent players")
		timeout = fs.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = fs.Uint64("seed", 0, "seed for usernames and guesses (0 picks one)")
		jsonLog = fs.Bool("json", false, "log JSON lines")
		verbose = fs.BoolP("verbose", "v", false, "log every game")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := logger.Init(logger.WithJSON(*jsonLog)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	_, err := playtest.Run(ctx, playtest.Config{
		BaseURL: *baseURL,
		Games:   *games,
		Workers: *workers,
		TopN:    *topN,
		Timeout: *timeout,
		Seed:    *seed,
		Verbose: *verbose,
		Logger:  logger.Named("playtest"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "play test failed:", err)
		os.Exit(1)
	}
}
