// Package ownership fetches point-in-time ownership snapshots from the
// apartments service. A snapshot is taken once, at voting creation, and is
// never refreshed for an existing voting.
package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homecouncil/voting-service/config"
	"github.com/homecouncil/voting-service/internal/models"
)

// Provider returns, for every apartment under the given houses, its owners
// with ownership share and apartment area. An empty result is valid (a house
// may have no registered owners); a fetch failure is an error the caller must
// surface, never an empty snapshot.
type Provider interface {
	OwnersForHouses(ctx context.Context, houseIDs []uuid.UUID) ([]models.ApartmentOwner, error)
}

// Client is the HTTP implementation of Provider against the apartments service.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient creates an apartments service client.
func NewClient(cfg config.ApartmentsConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		serviceToken: cfg.ServiceToken,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		logger:       logger,
	}
}

type ownersResponse struct {
	Success bool                    `json:"success"`
	Data    []models.ApartmentOwner `json:"data"`
	Error   string                  `json:"error,omitempty"`
}

// OwnersForHouses calls GET /internal/houses/owners on the apartments service.
func (c *Client) OwnersForHouses(ctx context.Context, houseIDs []uuid.UUID) ([]models.ApartmentOwner, error) {
	q := url.Values{}
	for _, id := range houseIDs {
		q.Add("house_id", id.String())
	}
	endpoint := c.baseURL + "/internal/houses/owners?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.serviceToken != "" {
		req.Header.Set("X-Service-Token", c.serviceToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("apartments service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("apartments service status: %d", resp.StatusCode)
	}

	var body ownersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode owners response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("apartments service error: %s", body.Error)
	}

	c.logger.Debug("ownership snapshot fetched",
		zap.Int("houses", len(houseIDs)),
		zap.Int("owners", len(body.Data)),
	)
	return body.Data, nil
}
