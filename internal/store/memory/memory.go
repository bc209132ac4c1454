package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

// MemoryStore keeps rooms and transcripts in process. It enforces the same
// one-active-room-per-stock rule as the database index.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]store.ChatRoom
	messages map[string][]store.Message
}

func New() *MemoryStore {
	return &MemoryStore{
		rooms:    map[string]store.ChatRoom{},
		messages: map[string][]store.Message{},
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) GetRoom(ctx context.Context, roomID string, userID string) (*store.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok || room.UserID != userID {
		return nil, nil
	}
	return &room, nil
}

func (m *MemoryStore) ListRooms(ctx context.Context, userID string) ([]store.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := []store.ChatRoom{}
	for _, room := range m.rooms {
		if room.UserID == userID {
			results = append(results, room)
		}
	}
	sortRooms(results)
	return results, nil
}

func (m *MemoryStore) FindActiveRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		if room.UserID == userID && room.StockCode == stockCode && room.Active() {
			return &room, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindLatestTrashedRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	candidates := []store.ChatRoom{}
	for _, room := range m.rooms {
		if room.UserID == userID && room.StockCode == stockCode && !room.Active() {
			candidates = append(candidates, room)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sortRooms(candidates)
	latest := candidates[len(candidates)-1]
	return &latest, nil
}

func (m *MemoryStore) CreateRoom(ctx context.Context, room store.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	if m.conflictsLocked(room) {
		return store.ErrDuplicateRoom
	}
	if room.TrashCan == "" {
		room.TrashCan = store.TrashOut
	}
	m.rooms[room.ID] = room
	return nil
}

func (m *MemoryStore) UpdateRoom(ctx context.Context, room store.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rooms[room.ID]
	if !ok || existing.UserID != room.UserID {
		return nil
	}
	if m.conflictsLocked(room) {
		return store.ErrDuplicateRoom
	}
	existing.Title = room.Title
	existing.TrashCan = room.TrashCan
	existing.LastChatAt = room.LastChatAt
	m.rooms[room.ID] = existing
	return nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[msg.RoomID]
	if !ok {
		return fmt.Errorf("room %s not found", msg.RoomID)
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], msg)
	room.LastChatAt = msg.CreatedAt
	m.rooms[msg.RoomID] = room
	return nil
}

func (m *MemoryStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages := m.orderedLocked(roomID)
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, roomID string, afterMessageID string) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages := m.orderedLocked(roomID)
	if afterMessageID == "" {
		return messages, nil
	}
	var after int64
	for _, msg := range messages {
		if msg.ID == afterMessageID {
			after = msg.Sequence
			break
		}
	}
	results := []store.Message{}
	for _, msg := range messages {
		if msg.Sequence > after {
			results = append(results, msg)
		}
	}
	return results, nil
}

// conflictsLocked reports whether room would become a second active room for
// its (user, stock) pair. Rooms without a stock code never conflict.
func (m *MemoryStore) conflictsLocked(room store.ChatRoom) bool {
	if room.StockCode == "" || !room.Active() {
		return false
	}
	for id, other := range m.rooms {
		if id == room.ID {
			continue
		}
		if other.UserID == room.UserID && other.StockCode == room.StockCode && other.Active() {
			return true
		}
	}
	return false
}

func (m *MemoryStore) orderedLocked(roomID string) []store.Message {
	messages := append([]store.Message{}, m.messages[roomID]...)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Sequence < messages[j].Sequence
	})
	return messages
}

func sortRooms(rooms []store.ChatRoom) {
	sort.Slice(rooms, func(i, j int) bool {
		left := parseTime(rooms[i].CreatedAt)
		right := parseTime(rooms[j].CreatedAt)
		if !left.Equal(right) {
			return left.Before(right)
		}
		return rooms[i].ID < rooms[j].ID
	})
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
