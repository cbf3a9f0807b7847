package ownership_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homecouncil/voting-service/config"
	"github.com/homecouncil/voting-service/internal/models"
	"github.com/homecouncil/voting-service/internal/ownership"
)

func newClient(t *testing.T, handler http.HandlerFunc) *ownership.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return ownership.NewClient(config.ApartmentsConfig{
		BaseURL:      srv.URL,
		ServiceToken: "secret",
		TimeoutSec:   5,
	}, nil)
}

func TestOwnersForHouses(t *testing.T) {
	houseA := uuid.New()
	houseB := uuid.New()
	owner := models.ApartmentOwner{
		UserID:        uuid.New(),
		ApartmentID:   uuid.New(),
		HouseID:       houseA,
		ApartmentArea: 54.3,
		Share:         0.5,
	}

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/houses/owners", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Service-Token"))
		assert.ElementsMatch(t, []string{houseA.String(), houseB.String()}, r.URL.Query()["house_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    []models.ApartmentOwner{owner},
		})
	})

	owners, err := client.OwnersForHouses(context.Background(), []uuid.UUID{houseA, houseB})
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, owner, owners[0])
}

func TestOwnersForHousesEmpty(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": []models.ApartmentOwner{}})
	})

	owners, err := client.OwnersForHouses(context.Background(), []uuid.UUID{uuid.New()})
	require.NoError(t, err, "a house without owners is not an error")
	assert.Empty(t, owners)
}

func TestOwnersForHousesServerError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.OwnersForHouses(context.Background(), []uuid.UUID{uuid.New()})
	require.Error(t, err, "a fetch failure must surface, never read as zero participants")
}

func TestOwnersForHousesUnreachable(t *testing.T) {
	client := ownership.NewClient(config.ApartmentsConfig{
		BaseURL:    "http://127.0.0.1:1",
		TimeoutSec: 1,
	}, nil)

	_, err := client.OwnersForHouses(context.Background(), []uuid.UUID{uuid.New()})
	require.Error(t, err)
}
