package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"chat_rooms",
		"messages",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

const roomColumns = `id, user_id, stock_code, title, trash_can, last_chat_at, created_at`

func (p *PostgresStore) GetRoom(ctx context.Context, roomID string, userID string) (*store.ChatRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE id = $1 AND user_id = $2
	`
	return p.queryRoom(ctx, query, roomID, userID)
}

func (p *PostgresStore) ListRooms(ctx context.Context, userID string) ([]store.ChatRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.ChatRoom{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) FindActiveRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE user_id = $1 AND stock_code = $2 AND trash_can = 'out'
		LIMIT 1
	`
	return p.queryRoom(ctx, query, userID, stockCode)
}

func (p *PostgresStore) FindLatestTrashedRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	const query = `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE user_id = $1 AND stock_code = $2 AND trash_can = 'in'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return p.queryRoom(ctx, query, userID, stockCode)
}

func (p *PostgresStore) CreateRoom(ctx context.Context, room store.ChatRoom) error {
	trashCan := strings.TrimSpace(room.TrashCan)
	if trashCan == "" {
		trashCan = store.TrashOut
	}
	const query = `
		INSERT INTO chat_rooms (id, user_id, stock_code, title, trash_can, last_chat_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		room.ID,
		room.UserID,
		nullString(room.StockCode),
		room.Title,
		trashCan,
		parseTimestampNull(room.LastChatAt),
		parseTimestampValue(room.CreatedAt),
	)
	return classify(err)
}

func (p *PostgresStore) UpdateRoom(ctx context.Context, room store.ChatRoom) error {
	const query = `
		UPDATE chat_rooms
		SET title = $3, trash_can = $4, last_chat_at = $5
		WHERE id = $1 AND user_id = $2
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		room.ID,
		room.UserID,
		room.Title,
		room.TrashCan,
		parseTimestampNull(room.LastChatAt),
	)
	return classify(err)
}

func (p *PostgresStore) AddMessage(ctx context.Context, msg store.Message) (err error) {
	createdAt := parseTimestampValue(msg.CreatedAt)
	const insert = `
		INSERT INTO messages (id, room_id, user_id, role, content, sequence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	const touch = `UPDATE chat_rooms SET last_chat_at = $2 WHERE id = $1`

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insert, msg.ID, msg.RoomID, msg.UserID, msg.Role, msg.Content, msg.Sequence, createdAt); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, touch, msg.RoomID, createdAt); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func (p *PostgresStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		return p.ListMessages(ctx, roomID, "")
	}
	const query = `
		SELECT id, room_id, user_id, role, content, sequence, created_at
		FROM (
			SELECT id, room_id, user_id, role, content, sequence, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY sequence DESC
			LIMIT $2
		) recent
		ORDER BY sequence ASC
	`
	return p.queryMessages(ctx, query, roomID, limit)
}

func (p *PostgresStore) ListMessages(ctx context.Context, roomID string, afterMessageID string) ([]store.Message, error) {
	if strings.TrimSpace(afterMessageID) == "" {
		const query = `
			SELECT id, room_id, user_id, role, content, sequence, created_at
			FROM messages
			WHERE room_id = $1
			ORDER BY sequence ASC
		`
		return p.queryMessages(ctx, query, roomID)
	}
	const query = `
		SELECT id, room_id, user_id, role, content, sequence, created_at
		FROM messages
		WHERE room_id = $1
			AND sequence > COALESCE((SELECT sequence FROM messages WHERE id = $2 AND room_id = $1), 0)
		ORDER BY sequence ASC
	`
	return p.queryMessages(ctx, query, roomID, afterMessageID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) queryRoom(ctx context.Context, query string, args ...any) (*store.ChatRoom, error) {
	room, err := scanRoom(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func scanRoom(row rowScanner) (store.ChatRoom, error) {
	var room store.ChatRoom
	var stockCode sql.NullString
	var lastChatAt sql.NullTime
	var createdAt time.Time
	if err := row.Scan(
		&room.ID,
		&room.UserID,
		&stockCode,
		&room.Title,
		&room.TrashCan,
		&lastChatAt,
		&createdAt,
	); err != nil {
		return store.ChatRoom{}, err
	}
	room.StockCode = stockCode.String
	if lastChatAt.Valid {
		room.LastChatAt = lastChatAt.Time.UTC().Format(time.RFC3339Nano)
	}
	room.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	return room, nil
}

func (p *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]store.Message, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Message{}
	for rows.Next() {
		var createdAt time.Time
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Role, &msg.Content, &msg.Sequence, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		results = append(results, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// classify maps a violation of the active-stock unique index to
// store.ErrDuplicateRoom.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicateRoom, pgErr.ConstraintName)
	}
	return err
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func parseTimestampNull(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
