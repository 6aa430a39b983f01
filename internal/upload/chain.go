// Package upload publishes local files through an ordered chain of public
// file-hosting providers, falling back to the next provider on failure.
package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Provider uploads one local file and returns a publicly reachable URL.
type Provider interface {
	Name() string
	Upload(ctx context.Context, localPath string) (string, error)
}

// AttemptFailure records why a single provider attempt failed.
type AttemptFailure struct {
	Provider string
	Reason   string
}

// ExhaustedError is returned when every provider in the chain failed.
// It carries the per-provider failure reasons so nothing is silently lost.
type ExhaustedError struct {
	Failures []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	reasons := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Provider, f.Reason))
	}
	return fmt.Sprintf("upload: all %d providers failed: %s", len(e.Failures), strings.Join(reasons, "; "))
}

// Chain tries providers strictly in order until one returns a well-formed
// absolute URL. Each attempt is independently time-bounded so one hanging
// provider cannot block the rest of the chain.
type Chain struct {
	providers      []Provider
	attemptTimeout time.Duration
}

// NewChain creates a Chain over the given providers. attemptTimeout bounds
// each individual provider call, not the chain as a whole.
func NewChain(attemptTimeout time.Duration, providers ...Provider) *Chain {
	return &Chain{providers: providers, attemptTimeout: attemptTimeout}
}

// Publish uploads localPath via the first provider that succeeds.
// On total failure it returns an *ExhaustedError.
func (c *Chain) Publish(ctx context.Context, localPath string) (string, error) {
	failures := make([]AttemptFailure, 0, len(c.providers))

	for _, p := range c.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		url, err := p.Upload(attemptCtx, localPath)
		cancel()

		if err != nil {
			log.Warn().Str("provider", p.Name()).Err(err).Msg("upload attempt failed, trying next provider")
			failures = append(failures, AttemptFailure{Provider: p.Name(), Reason: err.Error()})
			continue
		}

		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			log.Warn().Str("provider", p.Name()).Str("url", url).Msg("provider returned malformed URL, trying next provider")
			failures = append(failures, AttemptFailure{Provider: p.Name(), Reason: fmt.Sprintf("malformed URL %q", url)})
			continue
		}

		log.Info().Str("provider", p.Name()).Str("url", url).Msg("file published")
		return url, nil
	}

	return "", fmt.Errorf("upload.Chain.Publish: %w", &ExhaustedError{Failures: failures})
}
