package agent_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartchainark/clawbridge/internal/agent"
)

func existingMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestExtractMedia(t *testing.T) {
	t.Parallel()

	t.Run("splits text and media path", func(t *testing.T) {
		t.Parallel()

		path := existingMedia(t, "x.mp3")
		d := agent.ExtractMedia("Hello\nMEDIA: " + path)

		assert.Equal(t, "Hello", d.DisplayText)
		assert.Equal(t, path, d.MediaPath)
	})

	t.Run("no marker leaves text unchanged", func(t *testing.T) {
		t.Parallel()

		d := agent.ExtractMedia("just words")
		assert.Equal(t, "just words", d.DisplayText)
		assert.Empty(t, d.MediaPath)
	})

	t.Run("only the first marker is honored", func(t *testing.T) {
		t.Parallel()

		first := existingMedia(t, "first.mp3")
		second := existingMedia(t, "second.mp3")
		d := agent.ExtractMedia("hey\nMEDIA: " + first + "\nMEDIA: " + second)

		assert.Equal(t, first, d.MediaPath)
		assert.Contains(t, d.DisplayText, "MEDIA: "+second)
	})

	t.Run("missing file degrades to plain text", func(t *testing.T) {
		t.Parallel()

		d := agent.ExtractMedia("hey\nMEDIA: /nonexistent/voice.mp3")

		assert.Empty(t, d.MediaPath)
		assert.Equal(t, "hey\nMEDIA: /nonexistent/voice.mp3", d.DisplayText)
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		t.Parallel()

		path := existingMedia(t, "x.mp3")
		d := agent.ExtractMedia("  warm reply  \nMEDIA:   " + path + "  \n")

		assert.Equal(t, "warm reply", d.DisplayText)
		assert.Equal(t, path, d.MediaPath)
	})

	t.Run("mid-line marker is not a directive", func(t *testing.T) {
		t.Parallel()

		d := agent.ExtractMedia("see MEDIA: /tmp/x.mp3 above")
		assert.Empty(t, d.MediaPath)
	})
}
