package playtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/ageguess/pkg/logger"
)

// Defaults applied to zero Config fields.
const (
	defaultWorkers     = 4
	defaultTopN        = 5
	defaultTimeout     = 30 * time.Second
	maxUsernamePrefix  = 24
	percentageMultiple = 100
)

func (c *Config) withDefaults() {
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.TopN < 1 {
		c.TopN = defaultTopN
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
}

// Run plays cfg.Games games with cfg.Workers concurrent players, then checks
// the leaderboard against the submitted scores.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg.withDefaults()
	log := cfg.Logger
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting play test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("games", cfg.Games),
		logger.Int("workers", cfg.Workers),
		logger.Int("topN", cfg.TopN),
		logger.Duration("timeout", cfg.Timeout),
	)

	if err := checkHealth(ctx, cfg); err != nil {
		return stats, err
	}

	results := playGames(ctx, cfg, stats, log)

	board, err := fetchLeaderboard(ctx, cfg)
	if err != nil {
		return stats, err
	}
	stats.LeaderboardEntries = len(board)

	if err := verify(results, board, cfg.TopN); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats, board, log)
	return stats, nil
}

func checkHealth(ctx context.Context, cfg Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := (&http.Client{Timeout: cfg.Timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// playGames runs the worker pool. Failed games are counted, not fatal.
func playGames(ctx context.Context, cfg Config, stats *Stats, log logger.Logger) []GameResult {
	faker := gofakeit.New(cfg.Seed)
	usernames := make([]string, cfg.Games)
	for i := range usernames {
		name := faker.Username()
		if len(name) > maxUsernamePrefix {
			name = name[:maxUsernamePrefix]
		}
		usernames[i] = name + "-" + strconv.Itoa(i)
	}

	var (
		mu      sync.Mutex
		results []GameResult
		wg      sync.WaitGroup
	)
	jobs := make(chan int, cfg.Workers*2)

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				p, err := newPlayer(cfg.BaseURL, cfg.Timeout, cfg.Seed+uint64(i)+1)
				var res GameResult
				if err == nil {
					res, err = p.play(ctx, usernames[i])
				}

				mu.Lock()
				stats.GamesStarted++
				stats.RoundsPlayed += res.Rounds
				if err != nil {
					stats.GamesFailed++
				} else {
					stats.GamesCompleted++
					stats.ScoresSubmitted++
					if res.Score > stats.BestScore {
						stats.BestScore = res.Score
					}
					results = append(results, res)
				}
				mu.Unlock()

				if err != nil {
					log.Warn(ctx, "game failed", logger.Int("worker", workerID), logger.String("username", usernames[i]), logger.Error(err))
				} else if cfg.Verbose {
					log.Info(ctx, "game played", logger.String("username", res.Username), logger.Int("score", res.Score))
				}
			}
		}(w)
	}

	go func() {
		defer close(jobs)
		for i := range usernames {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	return results
}

func fetchLeaderboard(ctx context.Context, cfg Config) ([]Entry, error) {
	target := cfg.BaseURL + "/api/leaderboard?limit=" + strconv.Itoa(cfg.TopN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard request: %w", err)
	}
	resp, err := (&http.Client{Timeout: cfg.Timeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: leaderboard answered %d", ErrUnexpectedPage, resp.StatusCode)
	}
	var board []Entry
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return board, nil
}

// verify checks the board is sorted with dense tie ranks and that every
// submitted score that beats the cutoff is listed.
func verify(results []GameResult, board []Entry, topN int) error {
	for i, e := range board {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: first rank is %d", ErrUnordered, e.Rank)
			}
			continue
		}
		prev := board[i-1]
		switch {
		case e.Score > prev.Score:
			return fmt.Errorf("%w: entry %d scores %d above %d", ErrUnordered, i, e.Score, prev.Score)
		case e.Score == prev.Score && e.Rank != prev.Rank:
			return fmt.Errorf("%w: tied entries %d and %d have ranks %d and %d", ErrUnordered, i-1, i, prev.Rank, e.Rank)
		case e.Score < prev.Score && e.Rank != prev.Rank+1:
			return fmt.Errorf("%w: entry %d has rank %d after %d", ErrUnordered, i, e.Rank, prev.Rank)
		}
	}

	listed := make(map[string]int, len(board))
	for _, e := range board {
		listed[e.Username] = e.Score
	}
	full := len(board) >= topN
	for _, r := range results {
		if !r.Submitted {
			continue
		}
		if full && r.Score <= board[len(board)-1].Score {
			continue
		}
		if score, ok := listed[r.Username]; !ok || score != r.Score {
			return fmt.Errorf("%w: %s with %d", ErrMissingScore, r.Username, r.Score)
		}
	}
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats, board []Entry, log logger.Logger) {
	var successRate, gamesPerSecond float64
	if stats.GamesStarted > 0 {
		successRate = float64(stats.GamesCompleted) / float64(stats.GamesStarted) * percentageMultiple
	}
	if stats.Duration > 0 {
		gamesPerSecond = float64(stats.GamesCompleted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("gamesStarted", stats.GamesStarted),
		logger.Int("gamesCompleted", stats.GamesCompleted),
		logger.Int("gamesFailed", stats.GamesFailed),
		logger.Int("roundsPlayed", stats.RoundsPlayed),
		logger.Int("scoresSubmitted", stats.ScoresSubmitted),
		logger.Int("bestScore", stats.BestScore),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("gamesPerSecond", gamesPerSecond),
	)
	for _, e := range board {
		log.Info(ctx, "leaderboard", logger.Int("rank", e.Rank), logger.String("username", e.Username), logger.Int("score", e.Score))
	}
}
