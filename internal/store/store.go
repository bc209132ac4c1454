package store

import (
	"context"
	"errors"
)

// ErrDuplicateRoom is returned when a write would leave two active rooms for
// the same user and stock code.
var ErrDuplicateRoom = errors.New("an active room already exists for this stock code")

const (
	TrashIn  = "in"
	TrashOut = "out"
)

type ChatRoom struct {
	ID         string
	UserID     string
	StockCode  string
	Title      string
	TrashCan   string
	LastChatAt string
	CreatedAt  string
}

// Active reports whether the room is out of the trash.
func (r ChatRoom) Active() bool {
	return r.TrashCan != TrashIn
}

type Message struct {
	ID        string
	RoomID    string
	UserID    string
	Role      string
	Content   string
	Sequence  int64
	CreatedAt string
}

// Store is the persistence contract for rooms and messages. Room reads are
// scoped by owner; a room that is missing or owned by someone else is
// returned as nil with a nil error.
type Store interface {
	Ping(ctx context.Context) error
	GetRoom(ctx context.Context, roomID string, userID string) (*ChatRoom, error)
	ListRooms(ctx context.Context, userID string) ([]ChatRoom, error)
	FindActiveRoomByStock(ctx context.Context, userID string, stockCode string) (*ChatRoom, error)
	FindLatestTrashedRoomByStock(ctx context.Context, userID string, stockCode string) (*ChatRoom, error)
	CreateRoom(ctx context.Context, room ChatRoom) error
	UpdateRoom(ctx context.Context, room ChatRoom) error
	// AddMessage appends msg and moves the room's last_chat_at to the message
	// creation time in one transaction.
	AddMessage(ctx context.Context, msg Message) error
	// ListRecentMessages returns the newest limit messages, oldest first.
	ListRecentMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
	// ListMessages returns the room transcript in order. A non-empty
	// afterMessageID keeps only messages created after that one.
	ListMessages(ctx context.Context, roomID string, afterMessageID string) ([]Message, error)
}
