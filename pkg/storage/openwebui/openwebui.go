package openwebui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/record"
	"github.com/papercomputeco/taperelay/pkg/storage"
	"github.com/papercomputeco/taperelay/pkg/utils"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 512
)

// Config configures the import sink.
type Config struct {
	// URL is the full import endpoint,
	// e.g. "http://localhost:3000/api/v1/chats/import".
	URL string

	// APIKey is sent as a bearer credential.
	APIKey string

	// Timeout bounds each import call. Defaults to 30s.
	Timeout time.Duration
}

// Driver implements storage.Sink by importing records into Open WebUI.
type Driver struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDriver creates an import sink.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("import URL is required")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	return &Driver{
		config: c,
		httpClient: &http.Client{
			Timeout: c.Timeout,
		},
		logger: logger,
	}, nil
}

// Name implements storage.Sink.
func (d *Driver) Name() string {
	return "openwebui"
}

// Persist converts rec to a chat document and submits it.
func (d *Driver) Persist(ctx context.Context, rec *record.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	chat, err := BuildChat(rec)
	if err != nil {
		return fmt.Errorf("building chat for record %s: %w", rec.ID, err)
	}

	body, err := json.Marshal(ImportRequest{Chat: *chat})
	if err != nil {
		return fmt.Errorf("encoding chat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.config.APIKey)
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("import request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("import returned status %d: %s", resp.StatusCode, respBody)
	}

	d.logger.Debug("imported chat",
		zap.String("record_id", rec.ID),
		zap.String("chat_id", chat.ID),
		zap.Int("message_count", len(chat.Messages)),
	)

	return nil
}

// Close is a no-op for the import sink.
func (d *Driver) Close() error {
	return nil
}
