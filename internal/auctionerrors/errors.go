package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrVersionConflict = errors.New("auction was modified concurrently")
)

// business logic errors
var (
	ErrNotApproved    = errors.New("user is not approved for auction bidding")
	ErrAuctionNotLive = errors.New("auction is not live")
	ErrInvalidAmount  = errors.New("invalid bid amount")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrBidExceedsMax  = errors.New("bid amount exceeds max bid")
	ErrValidation     = errors.New("invalid auction data")
)
