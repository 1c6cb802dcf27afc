// Package memory keeps a short rolling transcript per tenant so the
// planner sees what was said a few turns ago ("usko bhi 2 de do"). It
// is conversation memory only: stock levels and balances are never
// cached here, every tool call re-reads the repository.
package memory

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
	"time"
)

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrInvalidTenantKey   = errors.New("tenant key is empty")
)

const (
	defaultKeyPrefix     = "kirana:transcript:"
	defaultTTL           = 24 * time.Hour
	defaultMaxTurns      = 12
	maxResponseSizeBytes = 2 << 20
)

// Turn is one side of one exchange.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Option customizes UpstashStore.
type Option func(*UpstashStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *UpstashStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *UpstashStore) {
		s.ttl = ttl
	}
}

func WithMaxTurns(n int) Option {
	return func(s *UpstashStore) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *UpstashStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashStore persists transcripts in Upstash Redis via REST.
type UpstashStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	maxTurns   int
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func NewUpstashStore(cfg UpstashConfig, opts ...Option) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultKeyPrefix,
		ttl:        defaultTTL,
		maxTurns:   defaultMaxTurns,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

// ReadTranscript renders the stored turns as plain alternating lines.
// A missing transcript is an empty string, not an error: first contact
// from a tenant has no history by definition.
func (s *UpstashStore) ReadTranscript(ctx context.Context, tenantKey string) (string, error) {
	turns, err := s.load(ctx, tenantKey)
	if err != nil {
		if errors.Is(err, ErrTranscriptNotFound) {
			return "", nil
		}
		return "", err
	}
	return Render(turns), nil
}

// AppendTurn records one exchange and trims to the rolling window.
func (s *UpstashStore) AppendTurn(ctx context.Context, tenantKey, userText, reply string) error {
	turns, err := s.load(ctx, tenantKey)
	if err != nil && !errors.Is(err, ErrTranscriptNotFound) {
		return err
	}

	now := time.Now().UTC()
	turns = append(turns,
		Turn{Role: "user", Text: userText, At: now},
		Turn{Role: "assistant", Text: reply, At: now},
	)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}

	key, err := s.redisKey(tenantKey)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	cmd := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashStore) Clear(ctx context.Context, tenantKey string) error {
	key, err := s.redisKey(tenantKey)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashStore) load(ctx context.Context, tenantKey string) ([]Turn, error) {
	key, err := s.redisKey(tenantKey)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrTranscriptNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode transcript payload: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(encoded), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return turns, nil
}

// Render flattens turns into the text block injected into the system
// prompt.
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		label := "Shopkeeper"
		if t.Role == "assistant" {
			label = "Assistant"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *UpstashStore) redisKey(tenantKey string) (string, error) {
	if strings.TrimSpace(tenantKey) == "" {
		return "", ErrInvalidTenantKey
	}
	return strings.TrimSpace(s.keyPrefix) + tenantKey, nil
}

func (s *UpstashStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
