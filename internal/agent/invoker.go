// Package agent invokes the external conversational agent CLI as a
// bounded-time subprocess and parses its JSON result envelope.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Request describes one agent invocation. Immutable once constructed.
type Request struct {
	Channel   string
	Message   string
	MediaPath string
	Timeout   time.Duration
}

// Payload is one unit of agent output.
type Payload struct {
	Text     string `json:"text"`
	MediaURL string `json:"mediaUrl,omitempty"`
}

// Meta carries timing and model info reported by the agent.
type Meta struct {
	DurationMs int64 `json:"durationMs"`
	AgentMeta  struct {
		Model string `json:"model"`
	} `json:"agentMeta"`
}

// Reply is the parsed agent result.
type Reply struct {
	Payloads []Payload
	Meta     Meta
}

type envelope struct {
	Status string `json:"status"`
	Result struct {
		Payloads []Payload `json:"payloads"`
		Meta     Meta      `json:"meta"`
	} `json:"result"`
}

// Sentinel errors for agent invocation.
var (
	// ErrTimeout indicates the subprocess exceeded its wall-clock bound and
	// was forcibly terminated.
	ErrTimeout = errors.New("agent: invocation timed out")

	// ErrEmptyReply indicates a status-ok reply carrying no payloads, which
	// is an application-level failure.
	ErrEmptyReply = errors.New("agent: reply contained no payloads")
)

// ProtocolError indicates the subprocess exited but its stdout was not a
// single JSON envelope. Raw preserves the output for diagnostics; malformed
// output from a live external process is expected occasionally.
type ProtocolError struct {
	Raw string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("agent: unparseable output: %v (raw: %.200s)", e.Err, e.Raw)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// StatusError indicates the envelope parsed but reported a non-ok status.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent: status %q", e.Status)
}

// Invoker runs the agent CLI. A weighted semaphore caps concurrent
// subprocesses so a burst of snapshots cannot fan out unboundedly.
type Invoker struct {
	bin string
	sem *semaphore.Weighted
}

// NewInvoker creates an Invoker for the given binary allowing up to
// maxConcurrent simultaneous invocations.
func NewInvoker(bin string, maxConcurrent int) *Invoker {
	return &Invoker{
		bin: bin,
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Invoke runs one subprocess for the request and parses its stdout.
// The request timeout is a hard bound: on expiry the subprocess is killed
// and ErrTimeout is returned. Each inbound event gets its own independent
// invocation; there is no queueing or deduplication across sessions.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*Reply, error) {
	if err := inv.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w", err)
	}
	defer inv.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	args := []string{"agent", "--to", req.Channel, "--message", req.Message}
	if req.MediaPath != "" {
		args = append(args, "--media", req.MediaPath)
	}
	args = append(args, "--json", "--timeout", strconv.Itoa(int(req.Timeout.Seconds())))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, inv.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	started := time.Now()
	log.Debug().Str("bin", inv.bin).Str("channel", req.Channel).Str("media", req.MediaPath).Msg("invoking agent")

	runErr := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		log.Warn().Dur("elapsed", time.Since(started)).Msg("agent invocation killed on timeout")
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w", ErrTimeout)
	}
	if runErr != nil {
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w (stderr: %.200s)", runErr, stderr.String())
	}

	var env envelope
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &env); err != nil {
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w", &ProtocolError{Raw: stdout.String(), Err: err})
	}

	if env.Status != "ok" {
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w", &StatusError{Status: env.Status})
	}
	if len(env.Result.Payloads) == 0 {
		return nil, fmt.Errorf("agent.Invoker.Invoke: %w", ErrEmptyReply)
	}

	log.Debug().
		Dur("elapsed", time.Since(started)).
		Int("payloads", len(env.Result.Payloads)).
		Str("model", env.Result.Meta.AgentMeta.Model).
		Msg("agent reply")

	return &Reply{Payloads: env.Result.Payloads, Meta: env.Result.Meta}, nil
}
