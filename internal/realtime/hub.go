// Package realtime fans auction updates out to connected clients.
// Membership is an explicit subscription registry: sessions join and
// leave auction rooms by id, and every session that identified a user is
// also registered under that user for targeted notices. Delivery is
// best-effort and at-most-once; a disconnected or slow subscriber simply
// misses the event and reconciles by re-fetching on reconnect.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	model "bikeshop-auctions/internal/models"
	"bikeshop-auctions/utils"
)

// Server-to-client event names.
const (
	eventBidUpdated   = "bidUpdated"
	eventOutbidNotice = "outbidNotification"
)

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks room and user membership for all live sessions.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*session]bool // auction id -> subscribers
	users    map[string]map[*session]bool // user id -> that user's sessions
	lastSent map[string]int64             // auction id -> version of the last update sent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*session]bool),
		users:    make(map[string]map[*session]bool),
		lastSent: make(map[string]int64),
	}
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.userID != "" {
		if h.users[s.userID] == nil {
			h.users[s.userID] = make(map[*session]bool)
		}
		h.users[s.userID][s] = true
	}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for auctionID := range s.rooms {
		h.removeFromRoom(s, auctionID)
	}
	if s.userID != "" {
		delete(h.users[s.userID], s)
		if len(h.users[s.userID]) == 0 {
			delete(h.users, s.userID)
		}
	}
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (h *Hub) joinRoom(s *session, auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[auctionID] == nil {
		h.rooms[auctionID] = make(map[*session]bool)
	}
	h.rooms[auctionID][s] = true
	s.rooms[auctionID] = true
}

func (h *Hub) leaveRoom(s *session, auctionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(s, auctionID)
}

// removeFromRoom requires h.mu to be held.
func (h *Hub) removeFromRoom(s *session, auctionID string) {
	delete(h.rooms[auctionID], s)
	if len(h.rooms[auctionID]) == 0 {
		delete(h.rooms, auctionID)
	}
	delete(s.rooms, auctionID)
}

// BroadcastBidUpdate delivers the updated auction to every subscriber of
// its room. Dispatch goroutines can reach the hub out of commit order, so
// updates for one auction are sequenced by record version: an update older
// than the last one sent for that room is dropped instead of delivered,
// and subscribers never see a stale currentBid after a fresher one.
func (h *Hub) BroadcastBidUpdate(ctx context.Context, auctionID string, auction model.AuctionView) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if auction.Version > 0 {
		if auction.Version <= h.lastSent[auctionID] {
			return
		}
		h.lastSent[auctionID] = auction.Version
	}
	h.emit(ctx, h.rooms[auctionID], envelope{Event: eventBidUpdated, Data: auction})
}

// NotifyOutbid delivers a private outbid notice to every session of the
// previously-highest bidder.
func (h *Hub) NotifyOutbid(ctx context.Context, userID string, notice model.OutbidNotice) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.emit(ctx, h.users[userID], envelope{Event: eventOutbidNotice, Data: notice})
}

// emit requires h.mu to be held (read lock suffices): send channels are
// only closed under the write lock, so sending here cannot race a close.
func (h *Hub) emit(ctx context.Context, sessions map[*session]bool, ev envelope) {
	if len(sessions) == 0 || ctx.Err() != nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		utils.Error("realtime: marshal event", map[string]any{"event": ev.Event, "error": err.Error()})
		return
	}

	for s := range sessions {
		select {
		case s.send <- payload:
		default:
			// Slow consumer; drop the event rather than block the emitter.
			utils.Warn("realtime: dropping event for slow session", map[string]any{
				"event":   ev.Event,
				"user_id": s.userID,
			})
		}
	}
}
