package agent

import (
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// MediaDirective is the result of scanning a payload for an embedded media
// marker. MediaPath is empty when the payload is plain text.
type MediaDirective struct {
	DisplayText string
	MediaPath   string
}

// A media line looks like "MEDIA: /tmp/voice-123.mp3".
var mediaLine = regexp.MustCompile(`(?m)^\s*MEDIA:\s*(.+?)\s*$`)

// ExtractMedia splits payload text into display text plus an optional local
// media path. Only the first marker line is honored; later markers stay
// embedded in the display text. A marker pointing at a file that does not
// exist degrades to plain text with a warning.
func ExtractMedia(text string) MediaDirective {
	loc := mediaLine.FindStringSubmatchIndex(text)
	if loc == nil {
		return MediaDirective{DisplayText: strings.TrimSpace(text)}
	}

	path := text[loc[2]:loc[3]]
	display := strings.TrimSpace(text[:loc[0]] + text[loc[1]:])

	if _, err := os.Stat(path); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("media directive points at missing file, treating as text")
		return MediaDirective{DisplayText: strings.TrimSpace(text)}
	}

	return MediaDirective{DisplayText: display, MediaPath: path}
}
