package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Response shapes differ per host: catbox and 0x0 answer with a bare URL in
// the body, tmpfiles wraps it in a JSON envelope. Each provider therefore
// carries its own response adapter.

// FromNames builds providers from the configured name list.
func FromNames(names []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case "catbox":
			providers = append(providers, NewCatbox())
		case "0x0":
			providers = append(providers, NewZeroX0())
		case "tmpfiles":
			providers = append(providers, NewTmpfiles())
		default:
			return nil, fmt.Errorf("upload.FromNames: unknown provider %q", name)
		}
	}
	return providers, nil
}

// postFile sends localPath as a multipart form field and returns the raw
// response body. Non-2xx statuses are errors carrying a body excerpt.
func postFile(ctx context.Context, client *http.Client, endpoint, field, localPath string, extra map[string]string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range extra {
		if fieldErr := w.WriteField(k, v); fieldErr != nil {
			return "", fmt.Errorf("write field %s: %w", k, fieldErr)
		}
	}

	part, err := w.CreateFormFile(field, filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err = io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return strings.TrimSpace(string(body)), nil
}

// Catbox uploads to catbox.moe. The API answers with a bare URL.
type Catbox struct {
	Endpoint string
	Client   *http.Client
}

func NewCatbox() *Catbox {
	return &Catbox{Endpoint: "https://catbox.moe/user/api.php", Client: http.DefaultClient}
}

func (c *Catbox) Name() string { return "catbox" }

func (c *Catbox) Upload(ctx context.Context, localPath string) (string, error) {
	body, err := postFile(ctx, c.Client, c.Endpoint, "fileToUpload", localPath, map[string]string{"reqtype": "fileupload"})
	if err != nil {
		return "", fmt.Errorf("upload.Catbox.Upload: %w", err)
	}
	return body, nil
}

// ZeroX0 uploads to 0x0.st. The API answers with a bare URL.
type ZeroX0 struct {
	Endpoint string
	Client   *http.Client
}

func NewZeroX0() *ZeroX0 {
	return &ZeroX0{Endpoint: "https://0x0.st", Client: http.DefaultClient}
}

func (z *ZeroX0) Name() string { return "0x0" }

func (z *ZeroX0) Upload(ctx context.Context, localPath string) (string, error) {
	body, err := postFile(ctx, z.Client, z.Endpoint, "file", localPath, nil)
	if err != nil {
		return "", fmt.Errorf("upload.ZeroX0.Upload: %w", err)
	}
	return body, nil
}

// Tmpfiles uploads to tmpfiles.org. The API answers with a JSON envelope
// holding the page URL at data.url; the direct-download form needs a /dl/
// path segment.
type Tmpfiles struct {
	Endpoint string
	Client   *http.Client
}

func NewTmpfiles() *Tmpfiles {
	return &Tmpfiles{Endpoint: "https://tmpfiles.org/api/v1/upload", Client: http.DefaultClient}
}

func (tf *Tmpfiles) Name() string { return "tmpfiles" }

func (tf *Tmpfiles) Upload(ctx context.Context, localPath string) (string, error) {
	body, err := postFile(ctx, tf.Client, tf.Endpoint, "file", localPath, nil)
	if err != nil {
		return "", fmt.Errorf("upload.Tmpfiles.Upload: %w", err)
	}

	url := gjson.Get(body, "data.url").String()
	if url == "" {
		return "", fmt.Errorf("upload.Tmpfiles.Upload: no data.url in response %q", body)
	}

	return strings.Replace(url, "tmpfiles.org/", "tmpfiles.org/dl/", 1), nil
}
