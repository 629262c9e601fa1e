package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/okian/ageguess/pkg/logger"
)

const qrSize = 256

// ShareURL is the address encoded in the QR code: the configured public URL
// or, failing that, the root of the host the request came in on.
func (s *Server) ShareURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + strings.TrimSuffix(r.Host, "/") + "/"
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	target := s.ShareURL(r)
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrShareCode, err)
		s.logger.Error(r.Context(), "qr generation failed", logger.String("url", target), logger.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}
