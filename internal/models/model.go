package models

import (
	"time"

	"bikeshop-auctions/internal/lifecycle"
)

// Category classifies an auction lot.
type Category string

const (
	CategoryRoadBikes     Category = "Road Bikes"
	CategoryMountainBikes Category = "Mountain Bikes"
	CategoryHybridBikes   Category = "Hybrid Bikes"
	CategoryElectricBikes Category = "Electric Bikes"
	CategoryKidsBikes     Category = "Kids Bikes"
	CategoryVintage       Category = "Vintage"
	CategoryComponents    Category = "Components"
	CategoryAccessories   Category = "Accessories"
	CategoryOther         Category = "Other"
)

// Categories lists every valid auction category.
var Categories = []Category{
	CategoryRoadBikes,
	CategoryMountainBikes,
	CategoryHybridBikes,
	CategoryElectricBikes,
	CategoryKidsBikes,
	CategoryVintage,
	CategoryComponents,
	CategoryAccessories,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Bid is one accepted bid in an auction's history. Amount is the amount
// actually recorded, which may differ from what the bidder submitted when
// a max-bid ceiling was applied.
type Bid struct {
	Bidder string   `json:"bidder" bson:"bidder"`
	Amount float64  `json:"amount" bson:"amount"`
	Time   time.Time `json:"time" bson:"time"`
	MaxBid *float64 `json:"maxBid,omitempty" bson:"maxBid,omitempty"`
}

// Auction is a lot up for bidding. CurrentBid always equals the amount of
// the last BidHistory entry, or the seller's opening value when the
// history is empty. BidHistory is append-only. Version guards concurrent
// bid appends; every accepted bid increments it.
type Auction struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Description  string    `json:"description" bson:"description"`
	Image        string    `json:"image" bson:"image"`
	CurrentBid   float64   `json:"currentBid" bson:"currentBid"`
	MinIncrement float64   `json:"minIncrement" bson:"minIncrement"`
	StartTime    time.Time `json:"startTime" bson:"startTime"`
	EndTime      time.Time `json:"endTime" bson:"endTime"`
	Category     Category  `json:"category" bson:"category"`
	BidHistory   []Bid     `json:"bidHistory" bson:"bidHistory"`
	Winner       string    `json:"winner,omitempty" bson:"winner,omitempty"`
	Version      int64     `json:"-" bson:"version"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// User holds the auction-relevant slice of a shop account.
type User struct {
	ID                   string    `json:"id" bson:"_id,omitempty"`
	Name                 string    `json:"name" bson:"name"`
	Email                string    `json:"email" bson:"email"`
	Role                 string    `json:"role" bson:"role"`
	IsApprovedForAuction bool      `json:"isApprovedForAuction" bson:"isApprovedForAuction"`
	Watchlist            []string  `json:"watchlist" bson:"watchlist"`
	CreatedAt            time.Time `json:"createdAt" bson:"createdAt"`
}

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// BidView is a Bid with the bidder's id resolved to a display name.
type BidView struct {
	Bidder string   `json:"bidder"`
	Amount float64  `json:"amount"`
	Time   time.Time `json:"time"`
	MaxBid *float64 `json:"maxBid,omitempty"`
}

// AuctionView is the render-ready shape of an auction: bidder references
// resolved to display names and the lifecycle phase computed at view time.
type AuctionView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	CurrentBid   float64         `json:"currentBid"`
	MinIncrement float64         `json:"minIncrement"`
	StartTime    time.Time       `json:"startTime"`
	EndTime      time.Time       `json:"endTime"`
	Category     Category        `json:"category"`
	Status       lifecycle.Phase `json:"status"`
	BidHistory   []BidView       `json:"bidHistory"`
	Winner       string          `json:"winner,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`

	// Version is the record version the view was built from. It orders
	// realtime updates for the same auction and stays off the wire.
	Version int64 `json:"-"`
}

// OutbidNotice is the payload of a targeted outbid notification.
type OutbidNotice struct {
	AuctionID    string  `json:"auctionId"`
	AuctionName  string  `json:"auctionName"`
	NewBidAmount float64 `json:"newBidAmount"`
}
