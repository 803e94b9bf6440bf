package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	auction "bikeshop-auctions/internal/auctionService"
	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/repository"
	"bikeshop-auctions/services/auction/helpers"
	"bikeshop-auctions/utils"

	"github.com/gin-gonic/gin"
)

// CallerIDKey is the gin context key under which the identity middleware
// stores the authenticated caller's user id.
const CallerIDKey = "callerID"

var (
	errNotAuthenticated = errors.New("caller is not authenticated")
	errAdminOnly        = errors.New("caller is not an administrator")
)

type AuctionServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, maxBid *float64) (model.AuctionView, error)
	CreateAuction(ctx context.Context, in auction.CreateAuctionInput) (model.AuctionView, error)
	UpdateAuction(ctx context.Context, id string, in auction.UpdateAuctionInput) (model.AuctionView, error)
	DeleteAuction(ctx context.Context, id string) error
	GetAuction(ctx context.Context, id string) (model.AuctionView, error)
	ListAuctions(ctx context.Context, filter repository.AuctionFilter) ([]model.AuctionView, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	AddToWatchlist(ctx context.Context, userID, auctionID string) ([]string, error)
	RemoveFromWatchlist(ctx context.Context, userID, auctionID string) ([]string, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// callerID returns the authenticated caller's id, or responds 401.
func (h *AuctionHandler) callerID(c *gin.Context) (string, bool) {
	id := c.GetString(CallerIDKey)
	if id == "" {
		utils.JSONError(c, http.StatusUnauthorized, errNotAuthenticated, "not authenticated")
		return "", false
	}
	return id, true
}

// requireAdmin responds 401/403 unless the caller is an administrator.
func (h *AuctionHandler) requireAdmin(c *gin.Context) bool {
	id, ok := h.callerID(c)
	if !ok {
		return false
	}
	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		helpers.RespondError(c, "requireAdmin", err, map[string]any{"user_id": id})
		return false
	}
	if user.Role != model.RoleAdmin {
		utils.JSONError(c, http.StatusForbidden, errAdminOnly, "admin access required")
		return false
	}
	return true
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	filter := repository.AuctionFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sortBy"),
	}

	auctions, err := h.service.ListAuctions(c.Request.Context(), filter)
	if err != nil {
		helpers.RespondError(c, "ListAuctionsHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	id := c.Param("id")
	view, err := h.service.GetAuction(c.Request.Context(), id)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": id})
		return
	}

	utils.JSONResponse(c, http.StatusOK, view, "auction retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	view, err := h.service.CreateAuction(c.Request.Context(), auction.CreateAuctionInput{
		Name:         req.Name,
		Description:  req.Description,
		Image:        req.Image,
		CurrentBid:   req.CurrentBid,
		MinIncrement: req.MinIncrement,
		StartTime:    time.UnixMilli(req.StartTime).UTC(),
		EndTime:      time.UnixMilli(req.EndTime).UTC(),
		Category:     req.Category,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"name": req.Name})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, view, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": view.ID,
		"name":       view.Name,
	})
}

// UpdateAuctionHandler handles PATCH /auctions/:id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	var req helpers.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	in := auction.UpdateAuctionInput{
		Name:         req.Name,
		Description:  req.Description,
		Image:        req.Image,
		CurrentBid:   req.CurrentBid,
		MinIncrement: req.MinIncrement,
		Category:     req.Category,
		Winner:       req.Winner,
	}
	if req.StartTime != nil {
		startTime := time.UnixMilli(*req.StartTime).UTC()
		in.StartTime = &startTime
	}
	if req.EndTime != nil {
		endTime := time.UnixMilli(*req.EndTime).UTC()
		in.EndTime = &endTime
	}

	id := c.Param("id")
	view, err := h.service.UpdateAuction(c.Request.Context(), id, in)
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": id})
		return
	}

	utils.JSONResponse(c, http.StatusOK, view, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated successfully", map[string]any{"auction_id": id})
}

// DeleteAuctionHandler handles DELETE /auctions/:id
func (h *AuctionHandler) DeleteAuctionHandler(c *gin.Context) {
	if !h.requireAdmin(c) {
		return
	}

	id := c.Param("id")
	if err := h.service.DeleteAuction(c.Request.Context(), id); err != nil {
		helpers.RespondError(c, "DeleteAuctionHandler", err, map[string]any{"auction_id": id})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "auction deleted successfully")
	helpers.LogSuccess("DeleteAuctionHandler", "auction deleted successfully", map[string]any{"auction_id": id})
}

// PlaceBidHandler handles POST /auctions/bid
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	bidderID, ok := h.callerID(c)
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	view, err := h.service.PlaceBid(c.Request.Context(), req.AuctionID, bidderID, req.Amount, req.MaxBid)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  bidderID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, view, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"auction_id": view.ID,
		"bidder_id":  bidderID,
		"amount":     view.CurrentBid,
	})
}

// UpdateWatchlistHandler handles PATCH /users/me/watchlist
func (h *AuctionHandler) UpdateWatchlistHandler(c *gin.Context) {
	userID, ok := h.callerID(c)
	if !ok {
		return
	}

	var req helpers.WatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateWatchlistHandler", err)
		return
	}

	var watchlist []string
	var err error
	switch req.Type {
	case "add":
		watchlist, err = h.service.AddToWatchlist(c.Request.Context(), userID, req.AuctionID)
	case "remove":
		watchlist, err = h.service.RemoveFromWatchlist(c.Request.Context(), userID, req.AuctionID)
	}
	if err != nil {
		helpers.RespondError(c, "UpdateWatchlistHandler", err, map[string]any{
			"user_id":    userID,
			"auction_id": req.AuctionID,
			"type":       req.Type,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.WatchlistResponse{Watchlist: watchlist}, "watchlist updated successfully")
	helpers.LogSuccess("UpdateWatchlistHandler", "watchlist updated successfully", map[string]any{
		"user_id": userID,
		"count":   len(watchlist),
	})
}
