package agent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartchainark/clawbridge/internal/agent"
)

// stubAgent writes an executable shell script standing in for the agent CLI.
func stubAgent(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestInvoke(t *testing.T) {
	t.Parallel()

	req := agent.Request{Channel: "#general", Message: "hi", Timeout: 5 * time.Second}

	t.Run("parses a well-formed envelope", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, `echo '{"status":"ok","result":{"payloads":[{"text":"hey"},{"text":"again","mediaUrl":"https://cdn.example/v.mp4"}],"meta":{"durationMs":1200,"agentMeta":{"model":"claw-1"}}}}'`)

		reply, err := agent.NewInvoker(bin, 2).Invoke(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, reply.Payloads, 2)
		assert.Equal(t, "hey", reply.Payloads[0].Text)
		assert.Equal(t, "https://cdn.example/v.mp4", reply.Payloads[1].MediaURL)
		assert.Equal(t, int64(1200), reply.Meta.DurationMs)
		assert.Equal(t, "claw-1", reply.Meta.AgentMeta.Model)
	})

	t.Run("passes channel, message and media flags", func(t *testing.T) {
		t.Parallel()

		// Echo the argv back inside the envelope text to assert on it.
		bin := stubAgent(t, `printf '{"status":"ok","result":{"payloads":[{"text":"%s"}]}}' "$*"`)

		withMedia := req
		withMedia.MediaPath = "/tmp/snap.jpg"

		reply, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), withMedia)
		require.NoError(t, err)
		require.Len(t, reply.Payloads, 1)
		argv := reply.Payloads[0].Text
		assert.Contains(t, argv, "agent --to #general --message hi")
		assert.Contains(t, argv, "--media /tmp/snap.jpg")
		assert.Contains(t, argv, "--json")
		assert.Contains(t, argv, "--timeout 5")
	})

	t.Run("kills the subprocess on timeout", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, "sleep 30")

		short := req
		short.Timeout = 300 * time.Millisecond

		start := time.Now()
		_, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), short)

		require.ErrorIs(t, err, agent.ErrTimeout)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("garbage stdout yields a protocol error carrying the raw output", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, `echo 'Segmentation fault (core dumped)'`)

		_, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), req)
		require.Error(t, err)

		var perr *agent.ProtocolError
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, perr.Raw, "Segmentation fault")
	})

	t.Run("non-ok status yields a status error", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, `echo '{"status":"rate_limited","result":{"payloads":[]}}'`)

		_, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), req)

		var serr *agent.StatusError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "rate_limited", serr.Status)
	})

	t.Run("ok status with zero payloads is a failure", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, `echo '{"status":"ok","result":{"payloads":[]}}'`)

		_, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), req)
		require.ErrorIs(t, err, agent.ErrEmptyReply)
	})

	t.Run("nonzero exit surfaces stderr", func(t *testing.T) {
		t.Parallel()

		bin := stubAgent(t, `echo 'gateway unreachable' >&2; exit 3`)

		_, err := agent.NewInvoker(bin, 1).Invoke(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gateway unreachable")
	})
}
