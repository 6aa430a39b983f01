// Package snapshot persists inbound browser captures to local files.
package snapshot

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sentinel errors for snapshot persistence.
var (
	// ErrStorage indicates a local filesystem failure. Fatal for the single
	// request that triggered it, not for the session.
	ErrStorage = errors.New("snapshot: storage failure")

	// ErrDecode indicates the inbound payload was not valid base64 image data.
	ErrDecode = errors.New("snapshot: invalid image data")
)

var dataURIPrefix = regexp.MustCompile(`^data:image/(\w+);base64,`)

// Store writes base64-encoded images into a single configured directory.
type Store struct {
	dir string
}

// NewStore creates the snapshot directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot.NewStore: %v: %w", err, ErrStorage)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory snapshots are written to.
func (s *Store) Dir() string { return s.dir }

// Save decodes a raw or data-URI-prefixed base64 image and writes it to a
// uniquely named file. The write goes through a temp file and rename so the
// returned path never exposes a partial write. Returns the final path.
func (s *Store) Save(data string) (string, error) {
	ext := "jpg"
	if m := dataURIPrefix.FindStringSubmatch(data); m != nil {
		if m[1] == "jpeg" {
			ext = "jpg"
		} else {
			ext = m[1]
		}
		data = data[len(m[0]):]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", fmt.Errorf("snapshot.Store.Save: %v: %w", err, ErrDecode)
	}

	// Timestamp plus a short random token keeps names unique within a
	// same-millisecond burst from one session.
	name := fmt.Sprintf("snapshot-%d-%s.%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("snapshot.Store.Save: %v: %w", err, ErrStorage)
	}

	_, err = tmp.Write(raw)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("snapshot.Store.Save: %v: %w", err, ErrStorage)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("snapshot.Store.Save: %v: %w", err, ErrStorage)
	}

	log.Debug().Str("path", path).Int("bytes", len(raw)).Msg("snapshot saved")
	return path, nil
}
