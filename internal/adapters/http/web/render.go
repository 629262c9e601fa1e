package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/ageguess/internal/domain/game"
	"github.com/okian/ageguess/internal/domain/model"
	"github.com/okian/ageguess/internal/domain/types"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	pageIndex       = "index"
	pageGuessing    = "guessing"
	pageResult      = "result"
	pageLeaderboard = "leaderboard"
	pageError       = "error"
)

var funcs = template.FuncMap{
	"guess": func(g float64) string { return strconv.FormatFloat(g, 'f', -1, 64) },
	"played": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04")
	},
}

// view is the data every page template receives.
type view struct {
	Title   string
	Message string
	Retry   string

	Round   model.Round
	Guess   string
	Summary model.Summary
	Best    game.RoundRecord
	HasBest bool
	Entries []types.Entry
}

func parseTemplates() (map[string]*template.Template, error) {
	pages := []string{pageIndex, pageGuessing, pageResult, pageLeaderboard, pageError}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := template.New(p).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+p+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		out[p] = t
	}
	return out, nil
}

// render executes page into a buffer first so a template failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, page string, v view) error {
	t, ok := s.pages[page]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return fmt.Errorf("%w %s: %w", ErrRender, page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
