// Package notify delivers queued voting notifications to the telegram bot
// gateway, which fans them out to the participants' chats.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/config"
	"github.com/homecouncil/voting-service/pkg/queue"
)

// Sender pushes one notification to its destination.
type Sender interface {
	SendVotingCreated(ctx context.Context, payload queue.VotingCreatedPayload) error
	SendVotingDecided(ctx context.Context, payload queue.VotingDecidedPayload) error
}

// BotSender is the HTTP implementation of Sender against the bot gateway.
type BotSender struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewBotSender creates a bot gateway sender.
func NewBotSender(cfg config.BotConfig, logger *zap.Logger) *BotSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotSender{
		baseURL:      cfg.BaseURL,
		serviceToken: cfg.ServiceToken,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		logger:       logger,
	}
}

// SendVotingCreated posts a voting-created notification to the bot gateway.
func (s *BotSender) SendVotingCreated(ctx context.Context, payload queue.VotingCreatedPayload) error {
	return s.post(ctx, "/internal/notifications/voting-created", payload)
}

// SendVotingDecided posts a voting-decided notification to the bot gateway.
func (s *BotSender) SendVotingDecided(ctx context.Context, payload queue.VotingDecidedPayload) error {
	return s.post(ctx, "/internal/notifications/voting-decided", payload)
}

type gatewayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *BotSender) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.serviceToken != "" {
		req.Header.Set("X-Service-Token", s.serviceToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot gateway status: %d", resp.StatusCode)
	}

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("bot gateway error: %s", out.Error)
	}

	s.logger.Debug("notification delivered", zap.String("path", path))
	return nil
}
