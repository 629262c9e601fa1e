package playtest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	maxRounds = 5
	minGuess  = 1
	maxGuess  = 100
)

var scorePattern = regexp.MustCompile(`<h1>(\d+) points</h1>`)

// player is one browser: its own cookie jar, so its own game session.
type player struct {
	baseURL string
	client  *http.Client
	rng     *rand.Rand
}

func newPlayer(baseURL string, timeout time.Duration, seed uint64) (*player, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &player{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Jar: jar, Timeout: timeout},
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// page is a response after redirects: where we landed and what it said.
type page struct {
	status int
	path   string
	body   string
}

func (p *player) do(ctx context.Context, method, path string, form url.Values) (page, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return page{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return page{status: resp.StatusCode, path: resp.Request.URL.Path, body: string(b)}, nil
}

func expect(pg page, status int, path string) error {
	if pg.status != status || pg.path != path {
		return fmt.Errorf("%w: got %d at %s, want %d at %s", ErrUnexpectedPage, pg.status, pg.path, status, path)
	}
	return nil
}

// play starts a game, guesses until the result page, and submits the score
// under username.
func (p *player) play(ctx context.Context, username string) (GameResult, error) {
	res := GameResult{Username: username}

	pg, err := p.do(ctx, http.MethodGet, "/play", nil)
	if err != nil {
		return res, err
	}
	if err := expect(pg, http.StatusOK, "/guess"); err != nil {
		return res, err
	}

	for pg.path == "/guess" {
		if res.Rounds == maxRounds {
			return res, fmt.Errorf("%w: still guessing after %d rounds", ErrUnexpectedPage, maxRounds)
		}
		guess := minGuess + p.rng.IntN(maxGuess-minGuess+1)
		pg, err = p.do(ctx, http.MethodPost, "/guess", url.Values{"age": {strconv.Itoa(guess)}})
		if err != nil {
			return res, err
		}
		if pg.status != http.StatusOK {
			return res, fmt.Errorf("%w: guess answered %d at %s", ErrUnexpectedPage, pg.status, pg.path)
		}
		res.Rounds++
	}
	if err := expect(pg, http.StatusOK, "/result"); err != nil {
		return res, err
	}

	m := scorePattern.FindStringSubmatch(pg.body)
	if m == nil {
		return res, ErrNoScore
	}
	res.Score, _ = strconv.Atoi(m[1])

	pg, err = p.do(ctx, http.MethodPost, "/leaderboard", url.Values{"username": {username}})
	if err != nil {
		return res, err
	}
	if err := expect(pg, http.StatusOK, "/leaderboard"); err != nil {
		return res, err
	}
	res.Submitted = true
	return res, nil
}
