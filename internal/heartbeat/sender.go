package heartbeat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/lookingglass/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	Path           = "/api/agents/heartbeat"
	requestTimeout = 10 * time.Second
)

var (
	ErrInvalidPanelURL = errors.New("heartbeat: panel url must be http or https")
	ErrTokenRequired   = errors.New("heartbeat: agent token is required")
	ErrRejected        = errors.New("heartbeat: rejected by panel")
)

// Config configures a Sender.
type Config struct {
	PanelURL string
	Token    string
	Status   string
	Interval time.Duration
	Client   *http.Client
	Logger   *zerolog.Logger
}

// Sender posts this agent's status to a panel on a fixed schedule.
type Sender struct {
	endpoint string
	token    string
	status   string
	interval time.Duration
	client   *http.Client
	logger   zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NormalizePanelURL returns raw without trailing slashes, or "" when raw is
// not an absolute http(s) URL.
func NormalizePanelURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return strings.TrimRight(u.String(), "/")
}

func NewSender(cfg Config) (*Sender, error) {
	panel := NormalizePanelURL(cfg.PanelURL)
	if panel == "" {
		return nil, ErrInvalidPanelURL
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("heartbeat: interval must be positive")
	}
	status := strings.TrimSpace(cfg.Status)
	if status == "" {
		status = "online"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Sender{
		endpoint: panel + Path,
		token:    token,
		status:   status,
		interval: cfg.Interval,
		client:   client,
		logger:   logger.With().Str("component", "heartbeat").Logger(),
	}, nil
}

// Endpoint is the heartbeat URL on the panel.
func (s *Sender) Endpoint() string {
	return s.endpoint
}

// Send posts one heartbeat.
func (s *Sender) Send(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"status": s.status})
	if err != nil {
		return fmt.Errorf("heartbeat: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("heartbeat: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &payload)
		reason := payload.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, reason)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}

// beat sends once and logs the outcome; failures never stop the schedule.
func (s *Sender) beat(ctx context.Context) {
	err := s.Send(ctx)
	observability.RecordHeartbeat(err == nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("endpoint", s.endpoint).Msg("heartbeat failed")
		return
	}
	s.logger.Debug().Str("endpoint", s.endpoint).Msg("heartbeat sent")
}

// Run sends immediately, then on every interval until ctx is done.
func (s *Sender) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return fmt.Errorf("heartbeat: already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.beat(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("heartbeat: schedule: %w", err)
	}
	s.cron = c
	s.mu.Unlock()

	s.logger.Info().
		Str("endpoint", s.endpoint).
		Dur("interval", s.interval).
		Msg("heartbeat started")

	s.beat(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	s.mu.Lock()
	s.cron = nil
	s.mu.Unlock()
	s.logger.Info().Msg("heartbeat stopped")
	return nil
}
