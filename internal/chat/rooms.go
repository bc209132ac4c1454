package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

// RoomUpdate carries the optional fields of a room update. Nil fields are
// left untouched.
type RoomUpdate struct {
	Title    *string
	TrashCan *string
}

func defaultRoomTitle(stockCode string) string {
	return stockCode + " 채팅"
}

// FindOrCreateByStock returns the user's active room for the stock, restores
// the most recently trashed one, or creates a new room. existed is true only
// when an active room was already there.
func (s *Service) FindOrCreateByStock(ctx context.Context, userID string, rawCode string, title string) (store.ChatRoom, bool, error) {
	code, err := NormalizeStockCode(rawCode)
	if err != nil {
		return store.ChatRoom{}, false, err
	}

	existing, err := s.store.FindActiveRoomByStock(ctx, userID, code)
	if err != nil {
		return store.ChatRoom{}, false, err
	}
	if existing != nil {
		return *existing, true, nil
	}

	trashed, err := s.store.FindLatestTrashedRoomByStock(ctx, userID, code)
	if err != nil {
		return store.ChatRoom{}, false, err
	}
	if trashed != nil {
		restored := *trashed
		restored.TrashCan = store.TrashOut
		if trimmed := strings.TrimSpace(title); trimmed != "" {
			restored.Title = trimmed
		}
		if err := s.store.UpdateRoom(ctx, restored); err != nil {
			if errors.Is(err, store.ErrDuplicateRoom) {
				return s.recoverActiveRoom(ctx, userID, code, err)
			}
			return store.ChatRoom{}, false, err
		}
		s.log.Info().Str("room_id", restored.ID).Str("stock_code", code).Msg("room restored from trash")
		return restored, false, nil
	}

	roomTitle := strings.TrimSpace(title)
	if roomTitle == "" {
		roomTitle = defaultRoomTitle(code)
	}
	room := store.ChatRoom{
		ID:        s.newID(),
		UserID:    userID,
		StockCode: code,
		Title:     roomTitle,
		TrashCan:  store.TrashOut,
		CreatedAt: s.timestamp(),
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, store.ErrDuplicateRoom) {
			return s.recoverActiveRoom(ctx, userID, code, err)
		}
		return store.ChatRoom{}, false, err
	}
	return room, false, nil
}

// recoverActiveRoom resolves a lost insert race by returning the room the
// other writer created. cause is returned when no such room exists.
func (s *Service) recoverActiveRoom(ctx context.Context, userID string, code string, cause error) (store.ChatRoom, bool, error) {
	existing, err := s.store.FindActiveRoomByStock(ctx, userID, code)
	if err != nil {
		return store.ChatRoom{}, false, err
	}
	if existing == nil {
		return store.ChatRoom{}, false, cause
	}
	s.log.Debug().Str("room_id", existing.ID).Str("stock_code", code).Msg("room created concurrently, reusing")
	return *existing, true, nil
}

// CreateRoom creates a room. With a stock code, an existing active room for
// that code is returned instead of inserting a second one.
func (s *Service) CreateRoom(ctx context.Context, userID string, title string, rawCode string) (store.ChatRoom, error) {
	title = strings.TrimSpace(title)
	code := ""
	if strings.TrimSpace(rawCode) != "" {
		normalized, err := NormalizeStockCode(rawCode)
		if err != nil {
			return store.ChatRoom{}, err
		}
		code = normalized
		existing, err := s.store.FindActiveRoomByStock(ctx, userID, code)
		if err != nil {
			return store.ChatRoom{}, err
		}
		if existing != nil {
			return *existing, nil
		}
		if title == "" {
			title = defaultRoomTitle(code)
		}
	}
	if title == "" {
		return store.ChatRoom{}, invalid("title", "Title must not be empty")
	}

	room := store.ChatRoom{
		ID:        s.newID(),
		UserID:    userID,
		StockCode: code,
		Title:     title,
		TrashCan:  store.TrashOut,
		CreatedAt: s.timestamp(),
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		if code != "" && errors.Is(err, store.ErrDuplicateRoom) {
			recovered, _, err := s.recoverActiveRoom(ctx, userID, code, err)
			return recovered, err
		}
		return store.ChatRoom{}, err
	}
	return room, nil
}

func (s *Service) GetRoomByStock(ctx context.Context, userID string, rawCode string) (store.ChatRoom, error) {
	code, err := NormalizeStockCode(rawCode)
	if err != nil {
		return store.ChatRoom{}, err
	}
	room, err := s.store.FindActiveRoomByStock(ctx, userID, code)
	if err != nil {
		return store.ChatRoom{}, err
	}
	if room == nil {
		return store.ChatRoom{}, ErrRoomNotFound
	}
	return *room, nil
}

func (s *Service) ListRooms(ctx context.Context, userID string) ([]store.ChatRoom, error) {
	return s.store.ListRooms(ctx, userID)
}

// UpdateRoom applies a title or trash change. When neither is supplied the
// room is returned as stored, without a write.
func (s *Service) UpdateRoom(ctx context.Context, roomID string, userID string, update RoomUpdate) (store.ChatRoom, error) {
	room, err := s.requireRoom(ctx, roomID, userID)
	if err != nil {
		return store.ChatRoom{}, err
	}

	changed := false
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return store.ChatRoom{}, invalid("title", "Title must not be empty")
		}
		room.Title = title
		changed = true
	}
	if update.TrashCan != nil {
		switch *update.TrashCan {
		case store.TrashIn, store.TrashOut:
			room.TrashCan = *update.TrashCan
		default:
			return store.ChatRoom{}, invalid("trash_can", "Invalid trash_can value")
		}
		changed = true
	}
	if !changed {
		return room, nil
	}

	if err := s.store.UpdateRoom(ctx, room); err != nil {
		return store.ChatRoom{}, fmt.Errorf("update room %s: %w", room.ID, err)
	}
	return room, nil
}

// ListMessages returns the room transcript, optionally only the messages
// after afterMessageID.
func (s *Service) ListMessages(ctx context.Context, roomID string, userID string, afterMessageID string) ([]store.Message, error) {
	if _, err := s.requireRoom(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, roomID, strings.TrimSpace(afterMessageID))
}
