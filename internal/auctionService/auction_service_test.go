package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"bikeshop-auctions/internal/auctionerrors"
	"bikeshop-auctions/internal/lifecycle"
	"bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/repository"
)

// fakeNotifier records deliveries and signals each one on events, so
// tests can wait out the fire-and-forget dispatch goroutine.
type fakeNotifier struct {
	mu         sync.Mutex
	broadcasts []models.AuctionView
	outbids    []outbidCall
	events     chan string
}

type outbidCall struct {
	userID string
	notice models.OutbidNotice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan string, 16)}
}

func (f *fakeNotifier) BroadcastBidUpdate(ctx context.Context, auctionID string, auction models.AuctionView) {
	f.mu.Lock()
	f.broadcasts = append(f.broadcasts, auction)
	f.mu.Unlock()
	f.events <- "bidUpdated"
}

func (f *fakeNotifier) NotifyOutbid(ctx context.Context, userID string, notice models.OutbidNotice) {
	f.mu.Lock()
	f.outbids = append(f.outbids, outbidCall{userID: userID, notice: notice})
	f.mu.Unlock()
	f.events <- "outbidNotification"
}

func (f *fakeNotifier) waitForEvents(t *testing.T, n int) []string {
	t.Helper()
	received := make([]string, 0, n)
	for len(received) < n {
		select {
		case ev := <-f.events:
			received = append(received, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d of %d", len(received)+1, n)
		}
	}
	return received
}

func approvedUser(id, name string) models.User {
	return models.User{ID: id, Name: name, Email: name + "@example.com", Role: models.RoleUser, IsApprovedForAuction: true}
}

func liveAuction(id string, currentBid, minIncrement float64, history ...models.Bid) models.Auction {
	now := time.Now().UTC()
	return models.Auction{
		ID:           id,
		Name:         "Vintage Peugeot Road Bike",
		Description:  "A collector's item in pristine condition.",
		Image:        "https://img.example/peugeot",
		CurrentBid:   currentBid,
		MinIncrement: minIncrement,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Category:     models.CategoryVintage,
		BidHistory:   history,
		CreatedAt:    now.Add(-2 * time.Hour),
	}
}

func fptr(v float64) *float64 { return &v }

// Tests the PlaceBid precondition chain and proxy-bid resolution.
func TestAuctionService_PlaceBid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name          string
		auctionID     string
		bidderID      string
		amount        float64
		maxBid        *float64
		mockSetup     func(auctions *repository.MockAuctionStore, users *repository.MockUserStore)
		expectedError error
		wantRecorded  float64 // amount the accepted bid must carry
	}{
		{
			name:          "empty_auction_id",
			auctionID:     "",
			bidderID:      "u1",
			amount:        320,
			mockSetup:     func(a *repository.MockAuctionStore, u *repository.MockUserStore) {},
			expectedError: auctionerrors.ErrValidation,
		},
		{
			name:          "empty_bidder_id",
			auctionID:     "a1",
			bidderID:      "",
			amount:        320,
			mockSetup:     func(a *repository.MockAuctionStore, u *repository.MockUserStore) {},
			expectedError: auctionerrors.ErrValidation,
		},
		{
			name:      "auction_not_found",
			auctionID: "missing",
			bidderID:  "u1",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "missing").Return(models.Auction{}, auctionerrors.ErrAuctionNotFound)
			},
			expectedError: auctionerrors.ErrAuctionNotFound,
		},
		{
			name:      "bidder_not_found",
			auctionID: "a1",
			bidderID:  "ghost",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "ghost").Return(models.User{}, auctionerrors.ErrUserNotFound)
			},
			expectedError: auctionerrors.ErrUserNotFound,
		},
		{
			name:      "bidder_not_approved",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				user := approvedUser("u1", "Biker Bob")
				user.IsApprovedForAuction = false
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)
			},
			expectedError: auctionerrors.ErrNotApproved,
		},
		{
			name:      "auction_upcoming",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				auction := liveAuction("a1", 300, 20)
				auction.StartTime = time.Now().UTC().Add(time.Hour)
				auction.EndTime = time.Now().UTC().Add(2 * time.Hour)
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrAuctionNotLive,
		},
		{
			name:      "auction_ended",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				auction := liveAuction("a1", 300, 20)
				auction.StartTime = time.Now().UTC().Add(-2 * time.Hour)
				auction.EndTime = time.Now().UTC().Add(-time.Hour)
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrAuctionNotLive,
		},
		{
			name:      "zero_amount",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    0,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrInvalidAmount,
		},
		{
			name:      "negative_max_bid",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    320,
			maxBid:    fptr(-10),
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrInvalidAmount,
		},
		{
			name:      "bid_too_low_without_ceiling",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    310, // minimum allowed is 320
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "bid_below_current",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    300,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 320, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "bid_exceeds_own_ceiling",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    400,
			maxBid:    fptr(350),
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrBidExceedsMax,
		},
		{
			name:      "ceiling_too_low_to_help",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    305,
			maxBid:    fptr(310), // both below minimum allowed 320
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			},
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "exact_minimum_accepted",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    320,
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				auction := liveAuction("a1", 300, 20)
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
				a.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).DoAndReturn(
					func(_ context.Context, _ string, bid models.Bid, _ int64) (models.Auction, error) {
						require.Equal(t, 320.0, bid.Amount)
						require.Equal(t, "u1", bid.Bidder)
						updated := auction
						updated.BidHistory = append([]models.Bid{}, bid)
						updated.CurrentBid = bid.Amount
						updated.Version = 1
						return updated, nil
					})
				u.EXPECT().GetUserNames(gomock.Any(), []string{"u1"}).Return(map[string]string{"u1": "Biker Bob"}, nil)
			},
			wantRecorded: 320,
		},
		{
			name:      "ceiling_auto_raises_to_minimum",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    300,
			maxBid:    fptr(360), // amount below minimum 320, ceiling covers it
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				auction := liveAuction("a1", 300, 20)
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
				a.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).DoAndReturn(
					func(_ context.Context, _ string, bid models.Bid, _ int64) (models.Auction, error) {
						require.Equal(t, 320.0, bid.Amount, "effective bid is min(ceiling, minAllowed)")
						require.NotNil(t, bid.MaxBid)
						require.Equal(t, 360.0, *bid.MaxBid)
						updated := auction
						updated.BidHistory = append([]models.Bid{}, bid)
						updated.CurrentBid = bid.Amount
						updated.Version = 1
						return updated, nil
					})
				u.EXPECT().GetUserNames(gomock.Any(), []string{"u1"}).Return(map[string]string{"u1": "Biker Bob"}, nil)
			},
			wantRecorded: 320,
		},
		{
			name:      "amount_within_ceiling_used_verbatim",
			auctionID: "a1",
			bidderID:  "u1",
			amount:    330,
			maxBid:    fptr(400),
			mockSetup: func(a *repository.MockAuctionStore, u *repository.MockUserStore) {
				auction := liveAuction("a1", 300, 20)
				a.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
				u.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
				a.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).DoAndReturn(
					func(_ context.Context, _ string, bid models.Bid, _ int64) (models.Auction, error) {
						require.Equal(t, 330.0, bid.Amount)
						updated := auction
						updated.BidHistory = append([]models.Bid{}, bid)
						updated.CurrentBid = bid.Amount
						updated.Version = 1
						return updated, nil
					})
				u.EXPECT().GetUserNames(gomock.Any(), []string{"u1"}).Return(map[string]string{"u1": "Biker Bob"}, nil)
			},
			wantRecorded: 330,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			auctions := repository.NewMockAuctionStore(ctrl)
			users := repository.NewMockUserStore(ctrl)
			notifier := newFakeNotifier()
			service := NewAuctionService(auctions, users, notifier, time.Second)

			tc.mockSetup(auctions, users)

			view, err := service.PlaceBid(ctx, tc.auctionID, tc.bidderID, tc.amount, tc.maxBid)

			if tc.expectedError != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantRecorded, view.CurrentBid)
			require.NotEmpty(t, view.BidHistory)
			require.Equal(t, tc.wantRecorded, view.BidHistory[len(view.BidHistory)-1].Amount)
			require.Equal(t, "Biker Bob", view.BidHistory[len(view.BidHistory)-1].Bidder, "bidder resolved to display name")
			require.Equal(t, lifecycle.Live, view.Status)

			notifier.waitForEvents(t, 1)
			require.Len(t, notifier.broadcasts, 1)
			require.Equal(t, tc.wantRecorded, notifier.broadcasts[0].CurrentBid)
		})
	}
}

// A conflict on append re-reads and re-validates against the fresh state.
func TestAuctionService_PlaceBid_RetryOnConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	t.Run("retry_succeeds", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		notifier := newFakeNotifier()
		service := NewAuctionService(auctions, users, notifier, time.Second)

		stale := liveAuction("a1", 300, 20)
		fresh := liveAuction("a1", 320, 20, models.Bid{Bidder: "u2", Amount: 320, Time: time.Now().UTC()})
		fresh.Version = 1

		users.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
		gomock.InOrder(
			auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(stale, nil),
			auctions.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).
				Return(models.Auction{}, auctionerrors.ErrVersionConflict),
			auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(fresh, nil),
			auctions.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(1)).DoAndReturn(
				func(_ context.Context, _ string, bid models.Bid, _ int64) (models.Auction, error) {
					require.Equal(t, 400.0, bid.Amount)
					updated := fresh
					updated.BidHistory = append(append([]models.Bid{}, fresh.BidHistory...), bid)
					updated.CurrentBid = bid.Amount
					updated.Version = 2
					return updated, nil
				}),
		)
		users.EXPECT().GetUserNames(gomock.Any(), gomock.Any()).Return(map[string]string{"u1": "Biker Bob", "u2": "Cycling Fan"}, nil)

		view, err := service.PlaceBid(ctx, "a1", "u1", 400, nil)
		require.NoError(t, err)
		require.Equal(t, 400.0, view.CurrentBid)
		require.Len(t, view.BidHistory, 2)

		// the competing bidder u2 gets a private outbid notice
		notifier.waitForEvents(t, 2)
		require.Len(t, notifier.outbids, 1)
		require.Equal(t, "u2", notifier.outbids[0].userID)
		require.Equal(t, 400.0, notifier.outbids[0].notice.NewBidAmount)
		require.Equal(t, "a1", notifier.outbids[0].notice.AuctionID)
	})

	t.Run("retry_revalidates_minimum", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, newFakeNotifier(), time.Second)

		stale := liveAuction("a1", 300, 20)
		fresh := liveAuction("a1", 320, 20, models.Bid{Bidder: "u2", Amount: 320, Time: time.Now().UTC()})
		fresh.Version = 1

		users.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
		gomock.InOrder(
			auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(stale, nil),
			auctions.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).
				Return(models.Auction{}, auctionerrors.ErrVersionConflict),
			auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(fresh, nil),
		)

		// 320 met the old minimum but not the new one (340)
		_, err := service.PlaceBid(ctx, "a1", "u1", 320, nil)
		require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
	})

	t.Run("retries_exhausted", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, newFakeNotifier(), time.Second)

		users.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil).Times(maxAppendRetries)
		auctions.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), int64(0)).
			Return(models.Auction{}, auctionerrors.ErrVersionConflict).Times(maxAppendRetries)

		_, err := service.PlaceBid(ctx, "a1", "u1", 1000, nil)
		require.ErrorIs(t, err, auctionerrors.ErrVersionConflict)
	})
}

// Outbid notices go to the previous highest bidder only when that is a
// different user.
func TestAuctionService_PlaceBid_OutbidNotice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	tests := []struct {
		name        string
		history     []models.Bid
		wantOutbids int
	}{
		{name: "no_prior_bids", history: nil, wantOutbids: 0},
		{
			name:        "prior_bidder_is_self",
			history:     []models.Bid{{Bidder: "u1", Amount: 320, Time: time.Now().UTC()}},
			wantOutbids: 0,
		},
		{
			name:        "prior_bidder_is_other",
			history:     []models.Bid{{Bidder: "u2", Amount: 320, Time: time.Now().UTC()}},
			wantOutbids: 1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			auctions := repository.NewMockAuctionStore(ctrl)
			users := repository.NewMockUserStore(ctrl)
			notifier := newFakeNotifier()
			service := NewAuctionService(auctions, users, notifier, time.Second)

			auction := liveAuction("a1", 320, 20, tc.history...)
			if len(tc.history) == 0 {
				auction.CurrentBid = 300
			}

			auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
			users.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
			auctions.EXPECT().AppendBid(gomock.Any(), "a1", gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ string, bid models.Bid, _ int64) (models.Auction, error) {
					updated := auction
					updated.BidHistory = append(append([]models.Bid{}, auction.BidHistory...), bid)
					updated.CurrentBid = bid.Amount
					updated.Version = auction.Version + 1
					return updated, nil
				})
			users.EXPECT().GetUserNames(gomock.Any(), gomock.Any()).Return(map[string]string{}, nil)

			_, err := service.PlaceBid(ctx, "a1", "u1", 1000, nil)
			require.NoError(t, err)

			notifier.waitForEvents(t, 1+tc.wantOutbids)
			require.Len(t, notifier.outbids, tc.wantOutbids)
			if tc.wantOutbids > 0 {
				require.Equal(t, "u2", notifier.outbids[0].userID)
				require.Equal(t, auction.Name, notifier.outbids[0].notice.AuctionName)
			}
		})
	}
}

// Tests CreateAuction validation
func TestAuctionService_CreateAuction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	now := time.Now().UTC()

	valid := CreateAuctionInput{
		Name:         "Limited Edition Carbon Wheelset",
		Description:  "Only 50 units ever produced.",
		Image:        "https://img.example/wheelset",
		CurrentBid:   1200,
		MinIncrement: 50,
		StartTime:    now.Add(time.Hour),
		EndTime:      now.Add(48 * time.Hour),
		Category:     "Components",
	}

	tests := []struct {
		name      string
		mutate    func(in *CreateAuctionInput)
		wantError bool
	}{
		{name: "valid", mutate: func(in *CreateAuctionInput) {}},
		{name: "missing_name", mutate: func(in *CreateAuctionInput) { in.Name = "  " }, wantError: true},
		{name: "missing_description", mutate: func(in *CreateAuctionInput) { in.Description = "" }, wantError: true},
		{name: "missing_image", mutate: func(in *CreateAuctionInput) { in.Image = "" }, wantError: true},
		{name: "zero_starting_bid", mutate: func(in *CreateAuctionInput) { in.CurrentBid = 0 }, wantError: true},
		{name: "negative_increment", mutate: func(in *CreateAuctionInput) { in.MinIncrement = -5 }, wantError: true},
		{name: "inverted_time_range", mutate: func(in *CreateAuctionInput) { in.StartTime, in.EndTime = in.EndTime, in.StartTime }, wantError: true},
		{name: "equal_times", mutate: func(in *CreateAuctionInput) { in.EndTime = in.StartTime }, wantError: true},
		{name: "unknown_category", mutate: func(in *CreateAuctionInput) { in.Category = "Unicycles" }, wantError: true},
		{name: "empty_category_defaults_to_other", mutate: func(in *CreateAuctionInput) { in.Category = "" }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			auctions := repository.NewMockAuctionStore(ctrl)
			users := repository.NewMockUserStore(ctrl)
			service := NewAuctionService(auctions, users, nil, time.Second)

			in := valid
			tc.mutate(&in)

			if !tc.wantError {
				auctions.EXPECT().CreateAuction(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, a models.Auction) (models.Auction, error) {
						a.ID = "a1"
						a.CreatedAt = now
						return a, nil
					})
			}

			view, err := service.CreateAuction(ctx, in)
			if tc.wantError {
				require.ErrorIs(t, err, auctionerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a1", view.ID)
			require.Equal(t, in.Name, view.Name)
			require.Equal(t, in.CurrentBid, view.CurrentBid)
			require.Equal(t, lifecycle.Upcoming, view.Status)
			if in.Category == "" {
				require.Equal(t, models.CategoryOther, view.Category)
			}
		})
	}
}

// Tests UpdateAuction partial validation against stored values
func TestAuctionService_UpdateAuction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("end_time_checked_against_stored_start", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		current := liveAuction("a1", 300, 20)
		current.StartTime = now.Add(time.Hour)
		current.EndTime = now.Add(5 * time.Hour)
		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(current, nil)

		badEnd := now.Add(30 * time.Minute) // before stored start
		_, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{EndTime: &badEnd})
		require.ErrorIs(t, err, auctionerrors.ErrValidation)
	})

	t.Run("start_time_checked_against_stored_end", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		current := liveAuction("a1", 300, 20)
		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(current, nil)

		badStart := current.EndTime.Add(time.Hour)
		_, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{StartTime: &badStart})
		require.ErrorIs(t, err, auctionerrors.ErrValidation)
	})

	t.Run("winner_rejected_while_live", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)

		winner := "u1"
		_, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{Winner: &winner})
		require.ErrorIs(t, err, auctionerrors.ErrValidation)
	})

	t.Run("winner_accepted_after_end", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		ended := liveAuction("a1", 320, 20, models.Bid{Bidder: "u1", Amount: 320, Time: now})
		ended.StartTime = now.Add(-3 * time.Hour)
		ended.EndTime = now.Add(-time.Hour)
		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(ended, nil)

		winner := "u1"
		updated := ended
		updated.Winner = "u1"
		auctions.EXPECT().UpdateAuction(gomock.Any(), "a1", gomock.Any()).Return(updated, nil)
		users.EXPECT().GetUserNames(gomock.Any(), []string{"u1"}).Return(map[string]string{"u1": "Biker Bob"}, nil)

		view, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{Winner: &winner})
		require.NoError(t, err)
		require.Equal(t, "Biker Bob", view.Winner)
		require.Equal(t, lifecycle.Ended, view.Status)
	})

	t.Run("invalid_category", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)

		category := "Unicycles"
		_, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{Category: &category})
		require.ErrorIs(t, err, auctionerrors.ErrValidation)
	})

	t.Run("empty_patch_is_noop_read", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		// UpdateAuction must not reach the store for a field-less patch
		auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(liveAuction("a1", 300, 20), nil)

		view, err := service.UpdateAuction(ctx, "a1", UpdateAuctionInput{})
		require.NoError(t, err)
		require.Equal(t, "a1", view.ID)
		require.Equal(t, 300.0, view.CurrentBid)
	})

	t.Run("not_found", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		service := NewAuctionService(auctions, repository.NewMockUserStore(ctrl), nil, time.Second)

		auctions.EXPECT().GetAuction(gomock.Any(), "missing").Return(models.Auction{}, auctionerrors.ErrAuctionNotFound)

		name := "whatever"
		_, err := service.UpdateAuction(ctx, "missing", UpdateAuctionInput{Name: &name})
		require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
	})
}

// Tests watchlist idempotence
func TestAuctionService_Watchlist(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	t.Run("add_new", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		user := approvedUser("u1", "Biker Bob")
		user.Watchlist = []string{"a1"}
		users.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)
		auctions.EXPECT().GetAuction(gomock.Any(), "a2").Return(liveAuction("a2", 300, 20), nil)
		users.EXPECT().UpdateWatchlist(gomock.Any(), "u1", []string{"a1", "a2"}).DoAndReturn(
			func(_ context.Context, _ string, watchlist []string) (models.User, error) {
				user.Watchlist = watchlist
				return user, nil
			})

		watchlist, err := service.AddToWatchlist(ctx, "u1", "a2")
		require.NoError(t, err)
		require.Equal(t, []string{"a1", "a2"}, watchlist)
	})

	t.Run("add_duplicate_is_noop", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		user := approvedUser("u1", "Biker Bob")
		user.Watchlist = []string{"a1"}
		users.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)
		// no store lookup, no update

		watchlist, err := service.AddToWatchlist(ctx, "u1", "a1")
		require.NoError(t, err)
		require.Equal(t, []string{"a1"}, watchlist)
	})

	t.Run("add_unknown_auction", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		users.EXPECT().GetUser(gomock.Any(), "u1").Return(approvedUser("u1", "Biker Bob"), nil)
		auctions.EXPECT().GetAuction(gomock.Any(), "missing").Return(models.Auction{}, auctionerrors.ErrAuctionNotFound)

		_, err := service.AddToWatchlist(ctx, "u1", "missing")
		require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
	})

	t.Run("remove_present", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		user := approvedUser("u1", "Biker Bob")
		user.Watchlist = []string{"a1", "a2"}
		users.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)
		users.EXPECT().UpdateWatchlist(gomock.Any(), "u1", []string{"a2"}).DoAndReturn(
			func(_ context.Context, _ string, watchlist []string) (models.User, error) {
				user.Watchlist = watchlist
				return user, nil
			})

		watchlist, err := service.RemoveFromWatchlist(ctx, "u1", "a1")
		require.NoError(t, err)
		require.Equal(t, []string{"a2"}, watchlist)
	})

	t.Run("remove_absent_is_noop", func(t *testing.T) {
		auctions := repository.NewMockAuctionStore(ctrl)
		users := repository.NewMockUserStore(ctrl)
		service := NewAuctionService(auctions, users, nil, time.Second)

		user := approvedUser("u1", "Biker Bob")
		user.Watchlist = []string{"a2"}
		users.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)
		// no update call

		watchlist, err := service.RemoveFromWatchlist(ctx, "u1", "a1")
		require.NoError(t, err)
		require.Equal(t, []string{"a2"}, watchlist)
	})
}

// Views resolve bidder names and never fail on a name-lookup error.
func TestAuctionService_GetAuction_View(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	now := time.Now().UTC()

	auctions := repository.NewMockAuctionStore(ctrl)
	users := repository.NewMockUserStore(ctrl)
	service := NewAuctionService(auctions, users, nil, time.Second)

	auction := liveAuction("a1", 350, 20,
		models.Bid{Bidder: "u1", Amount: 300, Time: now.Add(-30 * time.Minute)},
		models.Bid{Bidder: "u2", Amount: 350, Time: now.Add(-5 * time.Minute)},
	)

	auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
	users.EXPECT().GetUserNames(gomock.Any(), []string{"u1", "u2"}).Return(map[string]string{"u1": "Biker Bob"}, nil)

	view, err := service.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "Biker Bob", view.BidHistory[0].Bidder)
	require.Equal(t, "u2", view.BidHistory[1].Bidder, "unresolved names fall back to the raw id")
	require.Equal(t, lifecycle.Live, view.Status)

	// name lookup failure does not fail the read
	auctions.EXPECT().GetAuction(gomock.Any(), "a1").Return(auction, nil)
	users.EXPECT().GetUserNames(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("db down"))

	view, err = service.GetAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "u1", view.BidHistory[0].Bidder)
}
