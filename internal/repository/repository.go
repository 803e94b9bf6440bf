package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bikeshop-auctions/internal/auctionerrors"
	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/utils"
)

// AuctionFilter narrows and orders ListAuctions results. Category "" or
// "all" matches everything; Search is a case-insensitive substring match
// on name or description; SortBy is one of "newest", "endingSoon",
// "priceAsc", "priceDesc" (anything else falls back to newest).
type AuctionFilter struct {
	Category string
	Search   string
	SortBy   string
}

// AuctionUpdate is a partial update; nil fields are left untouched.
type AuctionUpdate struct {
	Name         *string
	Description  *string
	Image        *string
	CurrentBid   *float64
	MinIncrement *float64
	StartTime    *time.Time
	EndTime      *time.Time
	Category     *model.Category
	Winner       *string
}

// AuctionStore is the durable record of auctions and their bid histories.
type AuctionStore interface {
	GetAuction(ctx context.Context, id string) (model.Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error)
	CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	UpdateAuction(ctx context.Context, id string, update AuctionUpdate) (model.Auction, error)
	DeleteAuction(ctx context.Context, id string) error
	// AppendBid atomically appends a bid and sets currentBid to its amount,
	// but only if the stored version still equals expectedVersion. A stale
	// version yields ErrVersionConflict and leaves the record untouched.
	AppendBid(ctx context.Context, id string, bid model.Bid, expectedVersion int64) (model.Auction, error)
}

// UserStore resolves and updates the auction-relevant slice of accounts.
type UserStore interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserNames(ctx context.Context, ids []string) (map[string]string, error)
	UpdateWatchlist(ctx context.Context, userID string, watchlist []string) (model.User, error)
}

// MemoryStore is a concurrency-safe in-memory implementation of
// AuctionStore and UserStore, used by tests and demo mode.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	users    map[string]model.User
}

// NewMemoryStore creates a new in-memory store instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]model.Auction),
		users:    make(map[string]model.User),
	}
}

// GetAuction returns a copy of the auction with the given id.
func (s *MemoryStore) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	return copyAuction(auction), nil
}

// ListAuctions returns auctions matching the filter, ordered per SortBy.
func (s *MemoryStore) ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	result := make([]model.Auction, 0, len(s.auctions))
	for _, auction := range s.auctions {
		if filter.Category != "" && filter.Category != "all" && string(auction.Category) != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(auction.Name), search) &&
			!strings.Contains(strings.ToLower(auction.Description), search) {
			continue
		}
		result = append(result, copyAuction(auction))
	}

	switch filter.SortBy {
	case "endingSoon":
		sort.Slice(result, func(i, j int) bool { return result[i].EndTime.Before(result[j].EndTime) })
	case "priceAsc":
		sort.Slice(result, func(i, j int) bool { return result[i].CurrentBid < result[j].CurrentBid })
	case "priceDesc":
		sort.Slice(result, func(i, j int) bool { return result[i].CurrentBid > result[j].CurrentBid })
	default: // newest
		sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	}

	return result, nil
}

// CreateAuction stores a new auction, assigning an id when absent.
func (s *MemoryStore) CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auction.ID == "" {
		auction.ID = utils.GenerateID()
	}
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = time.Now().UTC()
	}
	s.auctions[auction.ID] = copyAuction(auction)
	return copyAuction(auction), nil
}

// UpdateAuction applies the non-nil fields of update to the stored record.
func (s *MemoryStore) UpdateAuction(ctx context.Context, id string, update AuctionUpdate) (model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}

	if update.Name != nil {
		auction.Name = *update.Name
	}
	if update.Description != nil {
		auction.Description = *update.Description
	}
	if update.Image != nil {
		auction.Image = *update.Image
	}
	if update.CurrentBid != nil {
		auction.CurrentBid = *update.CurrentBid
	}
	if update.MinIncrement != nil {
		auction.MinIncrement = *update.MinIncrement
	}
	if update.StartTime != nil {
		auction.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		auction.EndTime = *update.EndTime
	}
	if update.Category != nil {
		auction.Category = *update.Category
	}
	if update.Winner != nil {
		auction.Winner = *update.Winner
	}

	s.auctions[id] = copyAuction(auction)
	return copyAuction(auction), nil
}

// DeleteAuction removes the auction with the given id.
func (s *MemoryStore) DeleteAuction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[id]; !ok {
		return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	delete(s.auctions, id)
	return nil
}

// AppendBid appends a bid under the optimistic-concurrency guard.
func (s *MemoryStore) AppendBid(ctx context.Context, id string, bid model.Bid, expectedVersion int64) (model.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	if auction.Version != expectedVersion {
		return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, auctionerrors.ErrVersionConflict)
	}

	auction.BidHistory = append(auction.BidHistory, bid)
	auction.CurrentBid = bid.Amount
	auction.Version++
	s.auctions[id] = copyAuction(auction)
	return copyAuction(auction), nil
}

// GetUser returns a copy of the user with the given id.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", id, auctionerrors.ErrUserNotFound)
	}
	return copyUser(user), nil
}

// GetUserNames resolves user ids to display names. Unknown ids are
// silently omitted from the result.
func (s *MemoryStore) GetUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			names[id] = user.Name
		}
	}
	return names, nil
}

// UpdateWatchlist replaces the user's watchlist and returns the user.
func (s *MemoryStore) UpdateWatchlist(ctx context.Context, userID string, watchlist []string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("update watchlist for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	user.Watchlist = append([]string(nil), watchlist...)
	s.users[userID] = copyUser(user)
	return copyUser(user), nil
}

// AddUser adds a user to the store. Intended for seeding and tests.
func (s *MemoryStore) AddUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = utils.GenerateID()
	}
	s.users[user.ID] = copyUser(user)
}

func copyAuction(a model.Auction) model.Auction {
	a.BidHistory = append([]model.Bid(nil), a.BidHistory...)
	return a
}

func copyUser(u model.User) model.User {
	u.Watchlist = append([]string(nil), u.Watchlist...)
	return u
}
