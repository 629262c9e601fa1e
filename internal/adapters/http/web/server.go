// Package web serves the game pages: landing, guessing, result and
// leaderboard, plus the live leaderboard feed and the share QR code.
package web

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/okian/ageguess/internal/adapters/http/api"
	"github.com/okian/ageguess/internal/adapters/sessions"
	service "github.com/okian/ageguess/internal/app"
	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/internal/domain/model"
	"github.com/okian/ageguess/internal/domain/scoring"
	"github.com/okian/ageguess/internal/domain/subjects"
	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/logger"
)

// Game is the application surface the pages drive.
type Game interface {
	StartGame(ctx context.Context, sid string) error
	CurrentRound(ctx context.Context, sid string) (model.Round, error)
	SubmitGuess(ctx context.Context, sid, raw string) (model.Outcome, error)
	Result(ctx context.Context, sid string) (model.Summary, error)
	SubmitScore(ctx context.Context, sid, username string) (types.Entry, error)
	Leaderboard(ctx context.Context, n int) ([]types.Entry, error)
	LeaderboardSize() int
}

const malformedGuessMessage = "Please enter your guess as a number, like 42."

// Server renders the game pages.
type Server struct {
	game          Game
	pages         map[string]*template.Template
	logger        logger.Logger
	cookieName    string
	secureCookies bool
	publicURL     string
	live          http.Handler
	newID         func() string
}

// New creates the page server. It fails only if the embedded templates do
// not parse.
func New(g Game, opts ...Option) (*Server, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		game:       g,
		pages:      pages,
		logger:     logger.Nop(),
		cookieName: DefaultCookieName,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register attaches the page routes to router and installs its panic and
// not-found handlers.
func (s *Server) Register(router *httprouter.Router) {
	router.GET("/", s.instrument("index", s.handleIndex))
	router.GET("/play", s.instrument("play", s.handlePlay))
	router.GET("/guess", s.instrument("guess", s.handleGuessPage))
	router.POST("/guess", s.instrument("guess", s.handleGuess))
	router.GET("/result", s.instrument("result", s.handleResult))
	router.GET("/leaderboard", s.instrument("leaderboard", s.handleLeaderboard))
	router.POST("/leaderboard", s.instrument("leaderboard", s.handleSubmitScore))
	router.GET("/share.png", s.instrument("share", s.handleShare))

	if s.live != nil {
		// Upgraded connections bypass the metrics wrapper, which cannot hijack.
		router.Handler(http.MethodGet, "/leaderboard/live", s.live)
	}

	static, _ := fs.Sub(staticFS, "static")
	router.ServeFiles("/static/*filepath", http.FS(static))

	router.PanicHandler = s.handlePanic
	router.NotFound = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) instrument(endpoint string, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		api.MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			securityHeaders(w)
			h(w, r, ps)
		}, endpoint)(w, r)
	}
}

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.page(w, r, http.StatusOK, pageIndex, view{Title: "Welcome"})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sid := s.ensureSession(w, r)
	if err := s.game.StartGame(r.Context(), sid); err != nil {
		s.fail(w, r, "web.play", sid, err, "/play")
		return
	}
	http.Redirect(w, r, "/guess", http.StatusSeeOther)
}

func (s *Server) handleGuessPage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sid, ok := s.sessionID(r)
	if !ok {
		http.Redirect(w, r, "/play", http.StatusSeeOther)
		return
	}
	round, err := s.game.CurrentRound(r.Context(), sid)
	if err != nil {
		s.guessFailure(w, r, "web.guess_page", sid, err)
		return
	}
	s.page(w, r, http.StatusOK, pageGuessing, view{Title: round.Subject, Round: round})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sid, ok := s.sessionID(r)
	if !ok {
		http.Redirect(w, r, "/play", http.StatusSeeOther)
		return
	}
	raw := r.PostFormValue("age")
	outcome, err := s.game.SubmitGuess(r.Context(), sid, raw)
	if errors.Is(err, scoring.ErrMalformedGuess) {
		s.logger.Debug(r.Context(), "malformed guess", logger.String("sid", sid), logger.String("guess", raw))
		round, rerr := s.game.CurrentRound(r.Context(), sid)
		if rerr != nil {
			s.guessFailure(w, r, "web.guess", sid, rerr)
			return
		}
		s.page(w, r, http.StatusBadRequest, pageGuessing, view{
			Title:   round.Subject,
			Round:   round,
			Guess:   raw,
			Message: malformedGuessMessage,
		})
		return
	}
	if err != nil {
		s.guessFailure(w, r, "web.guess", sid, err)
		return
	}
	if outcome.Over {
		http.Redirect(w, r, "/result", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/guess", http.StatusSeeOther)
}

// guessFailure maps errors raised while playing a round.
func (s *Server) guessFailure(w http.ResponseWriter, r *http.Request, op, sid string, err error) {
	switch {
	case errors.Is(err, game.ErrGameOver):
		http.Redirect(w, r, "/result", http.StatusSeeOther)
	case errors.Is(err, game.ErrNoActiveGame):
		s.logger.Debug(r.Context(), "no active game", logger.String("op", op), logger.String("sid", sid), logger.Error(err))
		http.Redirect(w, r, "/play", http.StatusSeeOther)
	case errors.Is(err, game.ErrNoPendingSubject), errors.Is(err, game.ErrSubjectMismatch):
		s.logger.Debug(r.Context(), "round changed underneath", logger.String("op", op), logger.String("sid", sid), logger.Error(err))
		http.Redirect(w, r, "/guess", http.StatusSeeOther)
	case errors.Is(err, subjects.ErrNameResolutionExhausted):
		s.fail(w, r, op, sid, err, "/play")
	default:
		s.fail(w, r, op, sid, err, "/guess")
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sid, ok := s.sessionID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	summary, err := s.game.Result(r.Context(), sid)
	if errors.Is(err, game.ErrNoActiveGame) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.fail(w, r, "web.result", sid, err, "/result")
		return
	}
	best, hasBest := summary.BestRound()
	s.page(w, r, http.StatusOK, pageResult, view{
		Title:   "Your result",
		Summary: summary,
		Best:    best,
		HasBest: hasBest,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.showLeaderboard(w, r, http.StatusOK, "")
}

func (s *Server) showLeaderboard(w http.ResponseWriter, r *http.Request, status int, message string) {
	entries, err := s.game.Leaderboard(r.Context(), s.game.LeaderboardSize())
	if err != nil {
		s.fail(w, r, "web.leaderboard", "", err, "/leaderboard")
		return
	}
	s.page(w, r, status, pageLeaderboard, view{Title: "Leaderboard", Entries: entries, Message: message})
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sid, ok := s.sessionID(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	entry, err := s.game.SubmitScore(r.Context(), sid, r.PostFormValue("username"))
	switch {
	case errors.Is(err, game.ErrNoActiveGame):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, service.ErrAlreadySubmitted):
		s.showLeaderboard(w, r, http.StatusConflict, "That game is already on the leaderboard.")
	case err != nil:
		s.fail(w, r, "web.submit_score", sid, err, "/result")
	default:
		s.logger.Debug(r.Context(), "score recorded", logger.String("sid", sid), logger.Int("score", entry.Score))
		http.Redirect(w, r, "/leaderboard", http.StatusSeeOther)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	securityHeaders(w)
	s.page(w, r, http.StatusNotFound, pageError, view{
		Title:   "Page not found",
		Message: "There is nothing at this address.",
		Retry:   "/",
	})
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request, v any) {
	s.logger.Error(r.Context(), "panic serving request",
		logger.String("path", r.URL.Path),
		logger.Any("panic", v),
	)
	securityHeaders(w)
	s.page(w, r, http.StatusInternalServerError, pageError, view{
		Title:   "Server error",
		Message: "An error has occurred. Please try again.",
		Retry:   "/",
	})
}

// fail logs err and renders the "try again" page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op, sid string, err error, retry string) {
	s.logger.Error(r.Context(), "request failed",
		logger.String("op", op),
		logger.String("sid", sid),
		logger.String("kind", failureKind(err)),
		logger.Error(err),
	)
	s.page(w, r, http.StatusServiceUnavailable, pageError, view{
		Title:   "Try again",
		Message: failureMessage(err),
		Retry:   retry,
	})
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, subjects.ErrNameResolutionExhausted):
		return "exhausted"
	case errors.Is(err, subjects.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, sessions.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, service.ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}

func failureMessage(err error) string {
	switch failureKind(err) {
	case "exhausted":
		return "We could not find a name to ask about right now."
	case "timeout":
		return "The age lookup is taking too long."
	case "conflict":
		return "Your game changed in another tab."
	default:
		return "Something went wrong on our side."
	}
}

// page renders a template and falls back to a plain error when rendering
// itself fails.
func (s *Server) page(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	if err := s.render(w, status, name, v); err != nil {
		s.logger.Error(r.Context(), "render failed", logger.String("page", name), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) string {
	if sid, ok := s.sessionID(r); ok {
		return sid
	}
	sid := s.newID()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}
