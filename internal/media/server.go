// Package media serves locally generated media files over plain HTTP,
// independent of the WebSocket channel.
package media

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handler serves files from a single fixed base directory.
type Handler struct {
	dir string
}

// NewHandler creates a Handler rooted at dir.
func NewHandler(dir string) *Handler {
	return &Handler{dir: dir}
}

// Routes returns the router for the media surface: GET /{filename}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{filename}", h.serveFile)
	return r
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	// Traversal hardening: only a bare filename may reach the base dir.
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		log.Warn().Str("filename", name).Str("remote", r.RemoteAddr).Msg("rejected media path")
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}

	path := filepath.Join(h.dir, name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Str("path", path).Msg("media open failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ctype := contentType(filepath.Ext(name))

	// Browser pages are served from a different origin than the bridge.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", ctype)

	if _, err := io.Copy(w, f); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("media copy aborted")
		return
	}

	log.Debug().Str("path", path).Msg("media served")
}

// contentType resolves common agent media extensions before falling back to
// the platform mime table; .mp3 is missing from Go's builtin table.
func contentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
