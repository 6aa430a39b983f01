// Package bridge owns each browser WebSocket session: it decodes inbound
// events, drives the snapshot/upload/agent pipeline, and writes typed
// outbound events back.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smartchainark/clawbridge/internal/agent"
)

// Fallback line when stripping a media directive leaves no display text.
const defaultVoiceText = "Voice reply"

// Config carries the per-request knobs of the relay pipeline.
type Config struct {
	Channel           string
	AgentTimeout      time.Duration
	SnapshotPrompt    string
	VoicePromptPrefix string
	// RequirePublicURL selects whether a captured image is pushed through
	// the upload chain before the agent sees it, or handed over as a local
	// path. Explicit by design rather than inferred from the media kind.
	RequirePublicURL bool
	PublicBaseURL    string
	MediaPrefix      string
}

// SnapshotSaver persists one inbound image and returns its local path.
type SnapshotSaver interface {
	Save(data string) (string, error)
}

// Publisher makes a local file publicly reachable.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Invoker runs one agent invocation.
type Invoker interface {
	Invoke(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

// Bridge accepts browser WebSocket connections and relays their events to
// the agent. Sessions share no mutable state; each connection's pipeline is
// self-contained.
type Bridge struct {
	cfg       Config
	snapshots SnapshotSaver
	uploads   Publisher
	invoker   Invoker
}

// New wires a Bridge from its collaborators.
func New(cfg Config, snapshots SnapshotSaver, uploads Publisher, invoker Invoker) *Bridge {
	return &Bridge{cfg: cfg, snapshots: snapshots, uploads: uploads, invoker: invoker}
}

// ServeWS upgrades the request and runs the session until the transport
// closes. Events from one connection are dispatched in arrival order; an
// in-flight agent call on close is abandoned but still bounded by its own
// timeout.
func (b *Bridge) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	sess := &session{
		id:     uuid.New(),
		conn:   conn,
		bridge: b,
	}

	log.Info().Str("session_id", sess.id.String()).Str("remote", r.RemoteAddr).Msg("browser connected")
	sess.run(r.Context())
	log.Info().Str("session_id", sess.id.String()).Msg("browser disconnected")
}

// session is the state of one open connection.
type session struct {
	id     uuid.UUID
	conn   *websocket.Conn
	bridge *Bridge
}

func (s *session) run(ctx context.Context) {
	s.write(ctx, connectedEvent())

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			s.write(ctx, errorEvent("binary frames are not supported"))
			continue
		}
		s.dispatch(ctx, data)
	}
}

// dispatch is the pipeline error boundary: every failure below it becomes an
// error event and the session stays open.
func (s *session) dispatch(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("session_id", s.id.String()).Any("panic", r).Msg("event pipeline panicked")
			s.write(ctx, errorEvent(fmt.Sprintf("internal error: %v", r)))
		}
	}()

	var ev inboundEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.write(ctx, errorEvent(fmt.Sprintf("malformed message: %v", err)))
		return
	}

	var err error
	switch ev.Type {
	case "ping":
		s.write(ctx, pongEvent())
	case "voice":
		err = s.handleVoice(ctx, ev)
	case "snapshot":
		err = s.handleSnapshot(ctx, ev)
	default:
		err = fmt.Errorf("unknown message type %q", ev.Type)
	}

	if err != nil {
		log.Warn().Str("session_id", s.id.String()).Str("type", ev.Type).Err(err).Msg("event failed")
		s.write(ctx, errorEvent(err.Error()))
	}
}

func (s *session) handleVoice(ctx context.Context, ev inboundEvent) error {
	if strings.TrimSpace(ev.Text) == "" {
		return errors.New("voice message has no text")
	}

	s.write(ctx, processingEvent())

	reply, err := s.bridge.invoker.Invoke(ctx, agent.Request{
		Channel: s.bridge.cfg.Channel,
		Message: s.bridge.cfg.VoicePromptPrefix + ev.Text,
		Timeout: s.bridge.cfg.AgentTimeout,
	})
	if err != nil {
		return err
	}

	s.emitReply(ctx, reply)
	return nil
}

func (s *session) handleSnapshot(ctx context.Context, ev inboundEvent) error {
	if ev.Data == "" {
		return errors.New("snapshot has no image data")
	}

	path, err := s.bridge.snapshots.Save(ev.Data)
	if err != nil {
		return err
	}
	s.write(ctx, snapshotSavedEvent(path))
	s.write(ctx, processingEvent())

	mediaRef := path
	if s.bridge.cfg.RequirePublicURL {
		publicURL, pubErr := s.bridge.uploads.Publish(ctx, path)
		if pubErr != nil {
			return pubErr
		}
		mediaRef = publicURL
	}

	reply, err := s.bridge.invoker.Invoke(ctx, agent.Request{
		Channel:   s.bridge.cfg.Channel,
		Message:   s.bridge.cfg.SnapshotPrompt,
		MediaPath: mediaRef,
		Timeout:   s.bridge.cfg.AgentTimeout,
	})
	if err != nil {
		return err
	}

	s.emitReply(ctx, reply)
	return nil
}

// emitReply writes one outbound event per payload. A payload with a local
// media directive becomes a voice event, one with a remote media URL becomes
// a video event, anything else is plain text.
func (s *session) emitReply(ctx context.Context, reply *agent.Reply) {
	for _, payload := range reply.Payloads {
		if payload.Text == "" && payload.MediaURL == "" {
			continue
		}

		directive := agent.ExtractMedia(payload.Text)

		switch {
		case directive.MediaPath != "":
			text := directive.DisplayText
			if text == "" {
				text = defaultVoiceText
			}
			s.write(ctx, voiceEvent(text, s.bridge.mediaURL(directive.MediaPath)))
		case payload.MediaURL != "":
			if directive.DisplayText != "" {
				s.write(ctx, textEvent(directive.DisplayText))
			}
			s.write(ctx, videoEvent(payload.MediaURL))
		default:
			s.write(ctx, textEvent(directive.DisplayText))
		}
	}
}

// mediaURL rewrites a local media path into a URL served by the media
// handler.
func (b *Bridge) mediaURL(localPath string) string {
	base := strings.TrimSuffix(b.cfg.PublicBaseURL, "/")
	return base + b.cfg.MediaPrefix + "/" + url.PathEscape(filepath.Base(localPath))
}

func (s *session) write(ctx context.Context, ev outboundEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("outbound event marshal")
		return
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		log.Debug().Str("session_id", s.id.String()).Err(err).Msg("websocket write")
	}
}
