// Package mongostore implements the repository interfaces on MongoDB.
// Bid appends use a conditional update keyed on the record's version
// field, so two bids racing on one auction can never both commit against
// the same stale state.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bikeshop-auctions/internal/auctionerrors"
	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/internal/repository"
)

const (
	auctionsCollection = "auctions"
	usersCollection    = "users"
)

// Store is a MongoDB-backed AuctionStore and UserStore.
type Store struct {
	client   *mongo.Client
	auctions *mongo.Collection
	users    *mongo.Collection
	timeout  time.Duration
}

// Config holds the connection settings for New.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// New connects to MongoDB and pings it before returning a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:   client,
		auctions: db.Collection(auctionsCollection),
		users:    db.Collection(usersCollection),
		timeout:  cfg.Timeout,
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// auctionDoc is the persisted shape of an auction.
type auctionDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Description  string             `bson:"description"`
	Image        string             `bson:"image"`
	CurrentBid   float64            `bson:"currentBid"`
	MinIncrement float64            `bson:"minIncrement"`
	StartTime    time.Time          `bson:"startTime"`
	EndTime      time.Time          `bson:"endTime"`
	Category     string             `bson:"category"`
	BidHistory   []model.Bid        `bson:"bidHistory"`
	Winner       string             `bson:"winner,omitempty"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

func (d auctionDoc) toModel() model.Auction {
	history := d.BidHistory
	if history == nil {
		history = []model.Bid{}
	}
	return model.Auction{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Description:  d.Description,
		Image:        d.Image,
		CurrentBid:   d.CurrentBid,
		MinIncrement: d.MinIncrement,
		StartTime:    d.StartTime,
		EndTime:      d.EndTime,
		Category:     model.Category(d.Category),
		BidHistory:   history,
		Winner:       d.Winner,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt,
	}
}

type userDoc struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Name                 string             `bson:"name"`
	Email                string             `bson:"email"`
	Role                 string             `bson:"role"`
	IsApprovedForAuction bool               `bson:"isApprovedForAuction"`
	Watchlist            []string           `bson:"watchlist"`
	CreatedAt            time.Time          `bson:"createdAt"`
}

func (d userDoc) toModel() model.User {
	watchlist := d.Watchlist
	if watchlist == nil {
		watchlist = []string{}
	}
	return model.User{
		ID:                   d.ID.Hex(),
		Name:                 d.Name,
		Email:                d.Email,
		Role:                 d.Role,
		IsApprovedForAuction: d.IsApprovedForAuction,
		Watchlist:            watchlist,
		CreatedAt:            d.CreatedAt,
	}
}

func parseID(id string, wrap error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid id %q: %w", id, wrap)
	}
	return oid, nil
}

// GetAuction returns the auction with the given id.
func (s *Store) GetAuction(ctx context.Context, id string) (model.Auction, error) {
	oid, err := parseID(id, auctionerrors.ErrAuctionNotFound)
	if err != nil {
		return model.Auction{}, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc auctionDoc
	err = s.auctions.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// ListAuctions returns auctions matching the filter, ordered per SortBy.
func (s *Store) ListAuctions(ctx context.Context, filter repository.AuctionFilter) ([]model.Auction, error) {
	query := bson.M{}
	if filter.Category != "" && filter.Category != "all" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	var sortDoc bson.D
	switch filter.SortBy {
	case "endingSoon":
		sortDoc = bson.D{{Key: "endTime", Value: 1}}
	case "priceAsc":
		sortDoc = bson.D{{Key: "currentBid", Value: 1}}
	case "priceDesc":
		sortDoc = bson.D{{Key: "currentBid", Value: -1}}
	default: // newest
		sortDoc = bson.D{{Key: "createdAt", Value: -1}}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.auctions.Find(ctx, query, options.Find().SetSort(sortDoc))
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer cursor.Close(ctx)

	result := []model.Auction{}
	for cursor.Next(ctx) {
		var doc auctionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("list auctions: decode: %w", err)
		}
		result = append(result, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list auctions: cursor: %w", err)
	}
	return result, nil
}

// CreateAuction inserts a new auction document.
func (s *Store) CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error) {
	doc := auctionDoc{
		Name:         auction.Name,
		Description:  auction.Description,
		Image:        auction.Image,
		CurrentBid:   auction.CurrentBid,
		MinIncrement: auction.MinIncrement,
		StartTime:    auction.StartTime,
		EndTime:      auction.EndTime,
		Category:     string(auction.Category),
		BidHistory:   []model.Bid{},
		CreatedAt:    auction.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.auctions.InsertOne(ctx, doc)
	if err != nil {
		return model.Auction{}, fmt.Errorf("create auction: %w", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toModel(), nil
}

// UpdateAuction applies the non-nil fields of update with $set.
func (s *Store) UpdateAuction(ctx context.Context, id string, update repository.AuctionUpdate) (model.Auction, error) {
	oid, err := parseID(id, auctionerrors.ErrAuctionNotFound)
	if err != nil {
		return model.Auction{}, err
	}

	set := bson.M{}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}
	if update.CurrentBid != nil {
		set["currentBid"] = *update.CurrentBid
	}
	if update.MinIncrement != nil {
		set["minIncrement"] = *update.MinIncrement
	}
	if update.StartTime != nil {
		set["startTime"] = *update.StartTime
	}
	if update.EndTime != nil {
		set["endTime"] = *update.EndTime
	}
	if update.Category != nil {
		set["category"] = string(*update.Category)
	}
	if update.Winner != nil {
		set["winner"] = *update.Winner
	}

	// Mongo rejects an empty $set; treat a field-less update as a read.
	if len(set) == 0 {
		return s.GetAuction(ctx, id)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc auctionDoc
	err = s.auctions.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// DeleteAuction removes the auction document.
func (s *Store) DeleteAuction(ctx context.Context, id string) error {
	oid, err := parseID(id, auctionerrors.ErrAuctionNotFound)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.auctions.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete auction %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
	}
	return nil
}

// AppendBid pushes the bid and bumps currentBid in a single conditional
// update; the filter on version makes the read-validate-append sequence
// atomic per auction.
func (s *Store) AppendBid(ctx context.Context, id string, bid model.Bid, expectedVersion int64) (model.Auction, error) {
	oid, err := parseID(id, auctionerrors.ErrAuctionNotFound)
	if err != nil {
		return model.Auction{}, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc auctionDoc
	err = s.auctions.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "version": expectedVersion},
		bson.M{
			"$push": bson.M{"bidHistory": bid},
			"$set":  bson.M{"currentBid": bid.Amount},
			"$inc":  bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Missing document and stale version hit the same filter; look the
		// auction up to report the right error.
		count, countErr := s.auctions.CountDocuments(ctx, bson.M{"_id": oid})
		if countErr != nil {
			return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, countErr)
		}
		if count == 0 {
			return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, auctionerrors.ErrAuctionNotFound)
		}
		return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, auctionerrors.ErrVersionConflict)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("append bid to auction %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	oid, err := parseID(id, auctionerrors.ErrUserNotFound)
	if err != nil {
		return model.User{}, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc userDoc
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, fmt.Errorf("get user %s: %w", id, auctionerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// GetUserNames resolves user ids to display names; unknown or malformed
// ids are omitted.
func (s *Store) GetUserNames(ctx context.Context, ids []string) (map[string]string, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}

	names := make(map[string]string, len(oids))
	if len(oids) == 0 {
		return names, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.users.Find(
		ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("get user names: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("get user names: decode: %w", err)
		}
		names[doc.ID.Hex()] = doc.Name
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("get user names: cursor: %w", err)
	}
	return names, nil
}

// UpdateWatchlist replaces the user's watchlist and returns the user.
func (s *Store) UpdateWatchlist(ctx context.Context, userID string, watchlist []string) (model.User, error) {
	oid, err := parseID(userID, auctionerrors.ErrUserNotFound)
	if err != nil {
		return model.User{}, err
	}
	if watchlist == nil {
		watchlist = []string{}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc userDoc
	err = s.users.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"watchlist": watchlist}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, fmt.Errorf("update watchlist for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update watchlist for user %s: %w", userID, err)
	}
	return doc.toModel(), nil
}
