package helpers

// Request DTOs. Timestamps cross the wire as Unix milliseconds, the way
// the admin dashboard submits them.

type PlaceBidRequest struct {
	AuctionID string   `json:"auctionId" binding:"required"`
	Amount    float64  `json:"amount"`
	MaxBid    *float64 `json:"maxBid"`
}

type CreateAuctionRequest struct {
	Name         string  `json:"name" binding:"required"`
	Description  string  `json:"description" binding:"required"`
	Image        string  `json:"image" binding:"required"`
	CurrentBid   float64 `json:"currentBid" binding:"required"`
	MinIncrement float64 `json:"minIncrement" binding:"required"`
	StartTime    int64   `json:"startTime" binding:"required"`
	EndTime      int64   `json:"endTime" binding:"required"`
	Category     string  `json:"category"`
}

type UpdateAuctionRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Image        *string  `json:"image"`
	CurrentBid   *float64 `json:"currentBid"`
	MinIncrement *float64 `json:"minIncrement"`
	StartTime    *int64   `json:"startTime"`
	EndTime      *int64   `json:"endTime"`
	Category     *string  `json:"category"`
	Winner       *string  `json:"winner"`
}

type WatchlistRequest struct {
	AuctionID string `json:"auctionId" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=add remove"`
}

type WatchlistResponse struct {
	Watchlist []string `json:"watchlist"`
}
