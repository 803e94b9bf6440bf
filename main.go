package main

import (
	"context"
	"fmt"
	"os"
	"time"

	auction "bikeshop-auctions/internal/auctionService"
	"bikeshop-auctions/internal/config"
	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/realtime"
	"bikeshop-auctions/internal/repository"
	"bikeshop-auctions/internal/repository/mongostore"
	"bikeshop-auctions/internal/server"
	"bikeshop-auctions/utils"

	gofakeit "github.com/brianvoe/gofakeit/v7"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	utils.SetLevel(cfg.LogLevel)

	auctions, users, err := buildStores(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize store: %v\n", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	auctionSvc := auction.NewAuctionService(auctions, users, hub, cfg.NotifyTimeout)

	router := server.SetupRouter(auctionSvc, hub)

	fmt.Printf("Starting auction server on %s...\n", cfg.ServerAddress)
	if err := router.Run(cfg.ServerAddress); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// buildStores selects MongoDB when a URI is configured and falls back to
// the in-memory store otherwise.
func buildStores(cfg *config.Config) (repository.AuctionStore, repository.UserStore, error) {
	if cfg.MongoURI != "" {
		store, err := mongostore.New(context.Background(), mongostore.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.MongoTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		utils.Info("Using MongoDB store", map[string]any{"database": cfg.MongoDatabase})
		return store, store, nil
	}

	store := repository.NewMemoryStore()
	if cfg.SeedDemoData {
		seedDemoData(store)
	}
	utils.Info("Using in-memory store", nil)
	return store, store, nil
}

// seedDemoData populates the in-memory store with a handful of users and
// auctions so the frontend has something to show on a fresh start.
func seedDemoData(store *repository.MemoryStore) {
	gofakeit.Seed(0)
	now := time.Now().UTC()

	users := []model.User{
		{ID: "user1", Name: gofakeit.Name(), Email: gofakeit.Email(), Role: model.RoleUser, IsApprovedForAuction: true, CreatedAt: now},
		{ID: "user2", Name: gofakeit.Name(), Email: gofakeit.Email(), Role: model.RoleUser, IsApprovedForAuction: true, CreatedAt: now},
		{ID: "user3", Name: gofakeit.Name(), Email: gofakeit.Email(), Role: model.RoleUser, IsApprovedForAuction: false, CreatedAt: now},
		{ID: "admin1", Name: gofakeit.Name(), Email: gofakeit.Email(), Role: model.RoleAdmin, IsApprovedForAuction: true, CreatedAt: now},
	}
	for _, u := range users {
		store.AddUser(u)
	}

	ctx := context.Background()
	live := model.Auction{
		ID:           "auction1",
		Name:         "Vintage Peugeot PX-10",
		Description:  "1972 Reynolds 531 frame, original Simplex derailleurs, ridden but loved.",
		Image:        "https://images.example.com/auctions/peugeot-px10.jpg",
		CurrentBid:   320,
		MinIncrement: 20,
		StartTime:    now.Add(-2 * time.Hour),
		EndTime:      now.Add(22 * time.Hour),
		Category:     model.CategoryVintage,
		BidHistory: []model.Bid{
			{Bidder: "user1", Amount: 280, Time: now.Add(-90 * time.Minute)},
			{Bidder: "user2", Amount: 320, Time: now.Add(-30 * time.Minute)},
		},
		Version:   2,
		CreatedAt: now.Add(-24 * time.Hour),
	}
	upcoming := model.Auction{
		ID:           "auction2",
		Name:         "Carbon Wheelset",
		Description:  "50mm deep section clinchers, ceramic bearings, under 500km.",
		Image:        "https://images.example.com/auctions/carbon-wheelset.jpg",
		CurrentBid:   150,
		MinIncrement: 10,
		StartTime:    now.Add(24 * time.Hour),
		EndTime:      now.Add(72 * time.Hour),
		Category:     model.CategoryComponents,
		CreatedAt:    now,
	}
	for _, a := range []model.Auction{live, upcoming} {
		if _, err := store.CreateAuction(ctx, a); err != nil {
			utils.Warn("Failed to seed auction", map[string]any{"auction_id": a.ID, "error": err.Error()})
		}
	}

	utils.Info("Seeded demo data", map[string]any{"users": len(users), "auctions": 2})
}
