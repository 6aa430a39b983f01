package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Snapshot SnapshotConfig
	Media    MediaConfig
	Agent    AgentConfig
	Upload   UploadConfig
	Gateway  GatewayConfig
}

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Addr          string
	PublicBaseURL string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RatePerSecond float64
	RateBurst     int
}

// SnapshotConfig holds settings for inbound snapshot storage.
type SnapshotConfig struct {
	Dir string
}

// MediaConfig holds settings for serving generated media files.
type MediaConfig struct {
	Dir    string
	Prefix string
}

// AgentConfig holds settings for the external agent subprocess.
type AgentConfig struct {
	Bin               string
	Channel           string
	Timeout           time.Duration
	MaxConcurrent     int
	SnapshotPrompt    string
	VoicePromptPrefix string
	RequirePublicURL  bool
}

// UploadConfig holds settings for the public upload fallback chain.
type UploadConfig struct {
	Providers []string
	Timeout   time.Duration
}

// GatewayConfig holds settings for the upstream gateway connection.
// URL is optional; when empty the gateway client is not started.
type GatewayConfig struct {
	URL   string
	Token string
}

// Load reads configuration from environment variables.
// Defaults are suitable for a local bridge running next to the agent CLI.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("CLAWBRIDGE_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CLAWBRIDGE_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ratePerSecond, err := getEnvFloat("CLAWBRIDGE_RATE_PER_SECOND", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateBurst, err := getEnvInt("CLAWBRIDGE_RATE_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	agentTimeout, err := getEnvDuration("CLAWBRIDGE_AGENT_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxConcurrent, err := getEnvInt("CLAWBRIDGE_AGENT_MAX_CONCURRENT", 4)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	requirePublicURL, err := getEnvBool("CLAWBRIDGE_REQUIRE_PUBLIC_URL", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	uploadTimeout, err := getEnvDuration("CLAWBRIDGE_UPLOAD_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:          getEnv("CLAWBRIDGE_ADDR", ":8765"),
			PublicBaseURL: getEnv("CLAWBRIDGE_PUBLIC_BASE_URL", "http://localhost:8765"),
			ReadTimeout:   readTimeout,
			WriteTimeout:  writeTimeout,
			RatePerSecond: ratePerSecond,
			RateBurst:     rateBurst,
		},
		Snapshot: SnapshotConfig{
			Dir: getEnv("CLAWBRIDGE_SNAPSHOT_DIR", "/tmp/clawbridge-snapshots"),
		},
		Media: MediaConfig{
			Dir:    getEnv("CLAWBRIDGE_MEDIA_DIR", "/tmp"),
			Prefix: getEnv("CLAWBRIDGE_MEDIA_PREFIX", "/media"),
		},
		Agent: AgentConfig{
			Bin:               getEnv("CLAWBRIDGE_AGENT_BIN", "openclaw"),
			Channel:           getEnv("CLAWBRIDGE_AGENT_CHANNEL", "#general"),
			Timeout:           agentTimeout,
			MaxConcurrent:     maxConcurrent,
			SnapshotPrompt:    getEnv("CLAWBRIDGE_SNAPSHOT_PROMPT", "Look at this camera frame and reply with a short, warm voice message."),
			VoicePromptPrefix: getEnv("CLAWBRIDGE_VOICE_PROMPT_PREFIX", "send a voice message: "),
			RequirePublicURL:  requirePublicURL,
		},
		Upload: UploadConfig{
			Providers: getEnvList("CLAWBRIDGE_UPLOAD_PROVIDERS", []string{"catbox", "0x0", "tmpfiles"}),
			Timeout:   uploadTimeout,
		},
		Gateway: GatewayConfig{
			URL:   getEnv("CLAWBRIDGE_GATEWAY_URL", ""),
			Token: getEnv("CLAWBRIDGE_GATEWAY_TOKEN", ""),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("CLAWBRIDGE_ADDR must not be empty")
	}
	if !strings.HasPrefix(c.Server.PublicBaseURL, "http://") && !strings.HasPrefix(c.Server.PublicBaseURL, "https://") {
		return fmt.Errorf("CLAWBRIDGE_PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.Server.PublicBaseURL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CLAWBRIDGE_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CLAWBRIDGE_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RatePerSecond <= 0 {
		return fmt.Errorf("CLAWBRIDGE_RATE_PER_SECOND must be positive, got %g", c.Server.RatePerSecond)
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("CLAWBRIDGE_RATE_BURST must be >= 1, got %d", c.Server.RateBurst)
	}
	if c.Agent.Bin == "" {
		return errors.New("CLAWBRIDGE_AGENT_BIN must not be empty")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("CLAWBRIDGE_AGENT_TIMEOUT must be positive, got %s", c.Agent.Timeout)
	}
	if c.Agent.MaxConcurrent < 1 {
		return fmt.Errorf("CLAWBRIDGE_AGENT_MAX_CONCURRENT must be >= 1, got %d", c.Agent.MaxConcurrent)
	}
	if len(c.Upload.Providers) == 0 {
		return errors.New("CLAWBRIDGE_UPLOAD_PROVIDERS must name at least one provider")
	}
	if c.Upload.Timeout <= 0 {
		return fmt.Errorf("CLAWBRIDGE_UPLOAD_TIMEOUT must be positive, got %s", c.Upload.Timeout)
	}
	if !strings.HasPrefix(c.Media.Prefix, "/") {
		return fmt.Errorf("CLAWBRIDGE_MEDIA_PREFIX must start with '/', got %q", c.Media.Prefix)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
