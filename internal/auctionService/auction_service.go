package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bikeshop-auctions/internal/auctionerrors"
	"bikeshop-auctions/internal/lifecycle"
	"bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/repository"
	"bikeshop-auctions/utils"
)

// maxAppendRetries bounds the optimistic-concurrency retry loop in
// PlaceBid. A conflict means another bid committed between our read and
// our append; re-reading and re-validating is the normal path, not an
// error, until the budget runs out.
const maxAppendRetries = 3

// Notifier publishes bid outcomes to connected clients. Implementations
// must not block: delivery is best-effort and fire-and-forget relative
// to the bid response.
type Notifier interface {
	BroadcastBidUpdate(ctx context.Context, auctionID string, auction models.AuctionView)
	NotifyOutbid(ctx context.Context, userID string, notice models.OutbidNotice)
}

// AuctionService is the sole authority for accepting or rejecting bids,
// and carries the auction CRUD and watchlist operations around it.
type AuctionService struct {
	auctions      repository.AuctionStore
	users         repository.UserStore
	notifier      Notifier
	notifyTimeout time.Duration
	now           func() time.Time
}

// NewAuctionService creates a new AuctionService instance.
func NewAuctionService(auctions repository.AuctionStore, users repository.UserStore, notifier Notifier, notifyTimeout time.Duration) *AuctionService {
	return &AuctionService{
		auctions:      auctions,
		users:         users,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

// PlaceBid validates and records a bid on an auction. maxBid, when given,
// is a proxy ceiling: if the literal amount is below the minimum allowed
// bid but the ceiling covers it, the effective bid is auto-raised to the
// minimum. The ceiling is only ever used to meet the minimum; competing
// ceilings are not auto-outbid.
//
// On success the updated auction is broadcast to the auction's room and,
// when a different bidder held the previous high bid, a private outbid
// notice is sent to them. Both happen after the bid has been persisted
// and never block or fail the call.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, maxBid *float64) (models.AuctionView, error) {
	if auctionID == "" || bidderID == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - missing auctionID or bidderID", auctionerrors.ErrValidation)
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: %w", err)
	}

	user, err := s.users.GetUser(ctx, bidderID)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: %w", err)
	}
	if !user.IsApprovedForAuction {
		return models.AuctionView{}, fmt.Errorf("service: %w - user %s", auctionerrors.ErrNotApproved, bidderID)
	}

	var updated models.Auction
	var prevBidder string
	for attempt := 0; ; attempt++ {
		now := s.now().UTC()
		if lifecycle.PhaseAt(auction.StartTime, auction.EndTime, now) != lifecycle.Live {
			return models.AuctionView{}, fmt.Errorf("service: %w", auctionerrors.ErrAuctionNotLive)
		}
		if amount <= 0 {
			return models.AuctionView{}, fmt.Errorf("service: %w - non-positive bid amount", auctionerrors.ErrInvalidAmount)
		}
		if maxBid != nil && *maxBid <= 0 {
			return models.AuctionView{}, fmt.Errorf("service: %w - non-positive max bid", auctionerrors.ErrInvalidAmount)
		}

		effective, err := resolveEffectiveBid(amount, maxBid, auction.CurrentBid+auction.MinIncrement)
		if err != nil {
			return models.AuctionView{}, err
		}

		prevBidder = ""
		if n := len(auction.BidHistory); n > 0 {
			prevBidder = auction.BidHistory[n-1].Bidder
		}

		bid := models.Bid{Bidder: bidderID, Amount: effective, Time: now, MaxBid: maxBid}
		updated, err = s.auctions.AppendBid(ctx, auctionID, bid, auction.Version)
		if err == nil {
			break
		}
		if !errors.Is(err, auctionerrors.ErrVersionConflict) || attempt+1 >= maxAppendRetries {
			return models.AuctionView{}, fmt.Errorf("service: failed to record bid on auction %s by user %s: %w", auctionID, bidderID, err)
		}

		// Another bid landed first; re-read and re-validate against the
		// new current bid.
		auction, err = s.auctions.GetAuction(ctx, auctionID)
		if err != nil {
			return models.AuctionView{}, fmt.Errorf("service: %w", err)
		}
	}

	view := s.auctionView(ctx, updated)
	s.dispatchBidNotifications(view, prevBidder, bidderID, updated.CurrentBid)

	utils.Info("bid accepted", map[string]any{
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     updated.CurrentBid,
	})
	return view, nil
}

// resolveEffectiveBid applies the proxy-bid rules to decide the amount
// actually recorded, or rejects the bid.
func resolveEffectiveBid(amount float64, maxBid *float64, minAllowed float64) (float64, error) {
	if maxBid == nil {
		if amount < minAllowed {
			return 0, fmt.Errorf("service: %w - minimum bid is %.2f", auctionerrors.ErrBidTooLow, minAllowed)
		}
		return amount, nil
	}

	ceiling := *maxBid
	if amount > ceiling {
		return 0, fmt.Errorf("service: %w - max bid is %.2f", auctionerrors.ErrBidExceedsMax, ceiling)
	}
	if amount >= minAllowed {
		return amount, nil
	}
	if ceiling >= minAllowed {
		// Auto-raise only to the minimum allowed bid.
		effective := ceiling
		if minAllowed < effective {
			effective = minAllowed
		}
		return effective, nil
	}
	return 0, fmt.Errorf("service: %w - minimum bid is %.2f", auctionerrors.ErrBidTooLow, minAllowed)
}

func (s *AuctionService) dispatchBidNotifications(view models.AuctionView, prevBidder, newBidder string, newAmount float64) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		s.notifier.BroadcastBidUpdate(ctx, view.ID, view)
		if prevBidder != "" && prevBidder != newBidder {
			s.notifier.NotifyOutbid(ctx, prevBidder, models.OutbidNotice{
				AuctionID:    view.ID,
				AuctionName:  view.Name,
				NewBidAmount: newAmount,
			})
		}
	}()
}

// auctionView resolves bidder ids to display names and computes the
// current lifecycle phase. Name resolution is best-effort: a lookup
// failure falls back to raw ids rather than failing a committed
// operation.
func (s *AuctionService) auctionView(ctx context.Context, auction models.Auction) models.AuctionView {
	ids := make([]string, 0, len(auction.BidHistory)+1)
	seen := make(map[string]bool)
	for _, bid := range auction.BidHistory {
		if !seen[bid.Bidder] {
			seen[bid.Bidder] = true
			ids = append(ids, bid.Bidder)
		}
	}
	if auction.Winner != "" && !seen[auction.Winner] {
		ids = append(ids, auction.Winner)
	}

	names := map[string]string{}
	if len(ids) > 0 {
		resolved, err := s.users.GetUserNames(ctx, ids)
		if err != nil {
			utils.Warn("failed to resolve bidder names", map[string]any{"auction_id": auction.ID, "error": err.Error()})
		} else {
			names = resolved
		}
	}

	displayName := func(id string) string {
		if name, ok := names[id]; ok && name != "" {
			return name
		}
		return id
	}

	history := make([]models.BidView, 0, len(auction.BidHistory))
	for _, bid := range auction.BidHistory {
		history = append(history, models.BidView{
			Bidder: displayName(bid.Bidder),
			Amount: bid.Amount,
			Time:   bid.Time,
			MaxBid: bid.MaxBid,
		})
	}

	winner := ""
	if auction.Winner != "" {
		winner = displayName(auction.Winner)
	}

	return models.AuctionView{
		ID:           auction.ID,
		Name:         auction.Name,
		Description:  auction.Description,
		Image:        auction.Image,
		CurrentBid:   auction.CurrentBid,
		MinIncrement: auction.MinIncrement,
		StartTime:    auction.StartTime,
		EndTime:      auction.EndTime,
		Category:     auction.Category,
		Status:       lifecycle.PhaseAt(auction.StartTime, auction.EndTime, s.now().UTC()),
		BidHistory:   history,
		Winner:       winner,
		CreatedAt:    auction.CreatedAt,
		Version:      auction.Version,
	}
}

// CreateAuctionInput carries the fields an administrator supplies.
type CreateAuctionInput struct {
	Name         string
	Description  string
	Image        string
	CurrentBid   float64
	MinIncrement float64
	StartTime    time.Time
	EndTime      time.Time
	Category     string
}

// CreateAuction validates and stores a new auction.
func (s *AuctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (models.AuctionView, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - name is required", auctionerrors.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - description is required", auctionerrors.ErrValidation)
	}
	if strings.TrimSpace(in.Image) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - image is required", auctionerrors.ErrValidation)
	}
	if in.CurrentBid <= 0 {
		return models.AuctionView{}, fmt.Errorf("service: %w - starting bid must be positive", auctionerrors.ErrValidation)
	}
	if in.MinIncrement <= 0 {
		return models.AuctionView{}, fmt.Errorf("service: %w - minimum increment must be positive", auctionerrors.ErrValidation)
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() || !in.StartTime.Before(in.EndTime) {
		return models.AuctionView{}, fmt.Errorf("service: %w - end time must be after start time", auctionerrors.ErrValidation)
	}

	category := models.Category(in.Category)
	if in.Category == "" {
		category = models.CategoryOther
	} else if !category.Valid() {
		return models.AuctionView{}, fmt.Errorf("service: %w - unknown category %q", auctionerrors.ErrValidation, in.Category)
	}

	created, err := s.auctions.CreateAuction(ctx, models.Auction{
		Name:         in.Name,
		Description:  in.Description,
		Image:        in.Image,
		CurrentBid:   in.CurrentBid,
		MinIncrement: in.MinIncrement,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Category:     category,
		BidHistory:   []models.Bid{},
	})
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to create auction: %w", err)
	}

	utils.Info("auction created", map[string]any{"auction_id": created.ID, "name": created.Name})
	return s.auctionView(ctx, created), nil
}

// UpdateAuctionInput carries a partial update; nil fields are untouched.
type UpdateAuctionInput struct {
	Name         *string
	Description  *string
	Image        *string
	CurrentBid   *float64
	MinIncrement *float64
	StartTime    *time.Time
	EndTime      *time.Time
	Category     *string
	Winner       *string
}

// UpdateAuction validates the present fields and applies them. The
// start/end ordering is checked against the stored value of whichever
// bound is not being changed, and a winner may only be assigned once the
// auction has ended.
func (s *AuctionService) UpdateAuction(ctx context.Context, id string, in UpdateAuctionInput) (models.AuctionView, error) {
	if id == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrValidation)
	}

	current, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: %w", err)
	}

	update := repository.AuctionUpdate{
		Name:         in.Name,
		Description:  in.Description,
		Image:        in.Image,
		CurrentBid:   in.CurrentBid,
		MinIncrement: in.MinIncrement,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Winner:       in.Winner,
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - name must be non-empty", auctionerrors.ErrValidation)
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - description must be non-empty", auctionerrors.ErrValidation)
	}
	if in.Image != nil && strings.TrimSpace(*in.Image) == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - image must be non-empty", auctionerrors.ErrValidation)
	}
	if in.CurrentBid != nil && *in.CurrentBid <= 0 {
		return models.AuctionView{}, fmt.Errorf("service: %w - current bid must be positive", auctionerrors.ErrValidation)
	}
	if in.MinIncrement != nil && *in.MinIncrement <= 0 {
		return models.AuctionView{}, fmt.Errorf("service: %w - minimum increment must be positive", auctionerrors.ErrValidation)
	}

	if in.Category != nil {
		category := models.Category(*in.Category)
		if !category.Valid() {
			return models.AuctionView{}, fmt.Errorf("service: %w - unknown category %q", auctionerrors.ErrValidation, *in.Category)
		}
		update.Category = &category
	}

	startTime := current.StartTime
	if in.StartTime != nil {
		startTime = *in.StartTime
	}
	endTime := current.EndTime
	if in.EndTime != nil {
		endTime = *in.EndTime
	}
	if !startTime.Before(endTime) {
		return models.AuctionView{}, fmt.Errorf("service: %w - end time must be after start time", auctionerrors.ErrValidation)
	}

	if in.Winner != nil && *in.Winner != "" {
		if lifecycle.PhaseAt(current.StartTime, current.EndTime, s.now().UTC()) != lifecycle.Ended {
			return models.AuctionView{}, fmt.Errorf("service: %w - winner can only be set after the auction has ended", auctionerrors.ErrValidation)
		}
	}

	// A patch carrying no recognized fields is a no-op read, not a store
	// write, so both store implementations behave identically.
	if update == (repository.AuctionUpdate{}) {
		return s.auctionView(ctx, current), nil
	}

	updated, err := s.auctions.UpdateAuction(ctx, id, update)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: failed to update auction %s: %w", id, err)
	}

	utils.Info("auction updated", map[string]any{"auction_id": id})
	return s.auctionView(ctx, updated), nil
}

// DeleteAuction removes the auction with the given id.
func (s *AuctionService) DeleteAuction(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrValidation)
	}
	if err := s.auctions.DeleteAuction(ctx, id); err != nil {
		return fmt.Errorf("service: failed to delete auction %s: %w", id, err)
	}
	utils.Info("auction deleted", map[string]any{"auction_id": id})
	return nil
}

// GetAuction returns the render-ready view of one auction.
func (s *AuctionService) GetAuction(ctx context.Context, id string) (models.AuctionView, error) {
	if id == "" {
		return models.AuctionView{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrValidation)
	}
	auction, err := s.auctions.GetAuction(ctx, id)
	if err != nil {
		return models.AuctionView{}, fmt.Errorf("service: %w", err)
	}
	return s.auctionView(ctx, auction), nil
}

// ListAuctions returns views for every auction matching the filter.
func (s *AuctionService) ListAuctions(ctx context.Context, filter repository.AuctionFilter) ([]models.AuctionView, error) {
	auctions, err := s.auctions.ListAuctions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	views := make([]models.AuctionView, 0, len(auctions))
	for _, auction := range auctions {
		views = append(views, s.auctionView(ctx, auction))
	}
	return views, nil
}

// GetUser returns the user with the given id.
func (s *AuctionService) GetUser(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrValidation)
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("service: %w", err)
	}
	return user, nil
}

// AddToWatchlist adds an auction to the user's watchlist and returns the
// resulting list. Adding an already-present auction is a no-op success.
func (s *AuctionService) AddToWatchlist(ctx context.Context, userID, auctionID string) ([]string, error) {
	if userID == "" || auctionID == "" {
		return nil, fmt.Errorf("service: %w - missing userID or auctionID", auctionerrors.ErrValidation)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	for _, id := range user.Watchlist {
		if id == auctionID {
			return user.Watchlist, nil
		}
	}

	if _, err := s.auctions.GetAuction(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	updated, err := s.users.UpdateWatchlist(ctx, userID, append(user.Watchlist, auctionID))
	if err != nil {
		return nil, fmt.Errorf("service: failed to update watchlist for user %s: %w", userID, err)
	}
	return updated.Watchlist, nil
}

// RemoveFromWatchlist removes an auction from the user's watchlist and
// returns the resulting list. Removing an absent auction is a no-op
// success.
func (s *AuctionService) RemoveFromWatchlist(ctx context.Context, userID, auctionID string) ([]string, error) {
	if userID == "" || auctionID == "" {
		return nil, fmt.Errorf("service: %w - missing userID or auctionID", auctionerrors.ErrValidation)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	filtered := make([]string, 0, len(user.Watchlist))
	for _, id := range user.Watchlist {
		if id != auctionID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == len(user.Watchlist) {
		return user.Watchlist, nil
	}

	updated, err := s.users.UpdateWatchlist(ctx, userID, filtered)
	if err != nil {
		return nil, fmt.Errorf("service: failed to update watchlist for user %s: %w", userID, err)
	}
	return updated.Watchlist, nil
}
