package upload_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartchainark/clawbridge/internal/upload"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.jpg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromNames(t *testing.T) {
	t.Parallel()

	t.Run("builds known providers in order", func(t *testing.T) {
		t.Parallel()

		providers, err := upload.FromNames([]string{"catbox", "0x0", "tmpfiles"})
		require.NoError(t, err)
		require.Len(t, providers, 3)
		assert.Equal(t, "catbox", providers[0].Name())
		assert.Equal(t, "0x0", providers[1].Name())
		assert.Equal(t, "tmpfiles", providers[2].Name())
	})

	t.Run("unknown name errors", func(t *testing.T) {
		t.Parallel()

		_, err := upload.FromNames([]string{"catbox", "imgur"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "imgur")
	})
}

func TestCatbox(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "fileupload", r.FormValue("reqtype"))

		_, header, err := r.FormFile("fileToUpload")
		require.NoError(t, err)
		assert.Equal(t, "upload.jpg", header.Filename)

		_, _ = w.Write([]byte("https://files.catbox.moe/abc123.jpg\n"))
	}))
	defer srv.Close()

	p := &upload.Catbox{Endpoint: srv.URL, Client: srv.Client()}
	url, err := p.Upload(context.Background(), writeTempFile(t, "jpeg-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "https://files.catbox.moe/abc123.jpg", url)
}

func TestZeroX0(t *testing.T) {
	t.Parallel()

	t.Run("bare URL body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("file")
			require.NoError(t, err)
			_, _ = w.Write([]byte("https://0x0.st/abc.jpg"))
		}))
		defer srv.Close()

		p := &upload.ZeroX0{Endpoint: srv.URL, Client: srv.Client()}
		url, err := p.Upload(context.Background(), writeTempFile(t, "jpeg-bytes"))

		require.NoError(t, err)
		assert.Equal(t, "https://0x0.st/abc.jpg", url)
	})

	t.Run("non-2xx status surfaces the body", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		}))
		defer srv.Close()

		p := &upload.ZeroX0{Endpoint: srv.URL, Client: srv.Client()}
		_, err := p.Upload(context.Background(), writeTempFile(t, "jpeg-bytes"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "file too large")
	})

	t.Run("missing local file errors", func(t *testing.T) {
		t.Parallel()

		p := &upload.ZeroX0{Endpoint: "http://127.0.0.1:1", Client: http.DefaultClient}
		_, err := p.Upload(context.Background(), "/nonexistent/file.jpg")
		require.Error(t, err)
	})
}

func TestTmpfiles(t *testing.T) {
	t.Parallel()

	t.Run("JSON envelope is parsed and rewritten to direct URL", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"success","data":{"url":"https://tmpfiles.org/123/upload.jpg"}}`))
		}))
		defer srv.Close()

		p := &upload.Tmpfiles{Endpoint: srv.URL, Client: srv.Client()}
		url, err := p.Upload(context.Background(), writeTempFile(t, "jpeg-bytes"))

		require.NoError(t, err)
		assert.Equal(t, "https://tmpfiles.org/dl/123/upload.jpg", url)
	})

	t.Run("envelope without URL field errors", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error"}`))
		}))
		defer srv.Close()

		p := &upload.Tmpfiles{Endpoint: srv.URL, Client: srv.Client()}
		_, err := p.Upload(context.Background(), writeTempFile(t, "jpeg-bytes"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "data.url")
	})
}
