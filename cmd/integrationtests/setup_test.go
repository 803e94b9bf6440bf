package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "bikeshop-auctions/internal/auctionService"
	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/realtime"
	"bikeshop-auctions/internal/repository"
	"bikeshop-auctions/internal/server"

	"github.com/gin-gonic/gin"
)

// SetupTestRouter initializes the router with an in-memory store seeded
// with the given users and auctions.
func SetupTestRouter(t *testing.T, users []model.User, auctions []model.Auction) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	for _, u := range users {
		store.AddUser(u)
	}
	for _, a := range auctions {
		if _, err := store.CreateAuction(context.Background(), a); err != nil {
			t.Fatalf("failed to seed auction: %v", err)
		}
	}

	hub := realtime.NewHub()
	service := auction.NewAuctionService(store, store, hub, time.Second)
	return server.SetupRouter(service, hub)
}

// ExecuteRequest executes an HTTP request as the given user and returns
// the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url, userID string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and
// parses the response envelope.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, userID, reqBody)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// approvedUser returns a bidder allowed to participate in auctions.
func approvedUser(id, name string) model.User {
	return model.User{
		ID:                   id,
		Name:                 name,
		Email:                name + "@example.com",
		Role:                 model.RoleUser,
		IsApprovedForAuction: true,
		CreatedAt:            time.Now().UTC(),
	}
}

// adminUser returns a user with administrative privileges.
func adminUser(id, name string) model.User {
	u := approvedUser(id, name)
	u.Role = model.RoleAdmin
	return u
}

// liveAuction returns an auction that is currently accepting bids.
func liveAuction(id string, currentBid, minIncrement float64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		ID:           id,
		Name:         "Auction " + id,
		Description:  "Integration test lot",
		Image:        "https://images.example.com/" + id + ".jpg",
		CurrentBid:   currentBid,
		MinIncrement: minIncrement,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Category:     model.CategoryRoadBikes,
		CreatedAt:    now,
	}
}
