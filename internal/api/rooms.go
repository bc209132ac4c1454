package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

type roomResponse struct {
	ChatID     string  `json:"chat_id"`
	Title      string  `json:"title"`
	StockCode  *string `json:"stock_code"`
	TrashCan   string  `json:"trash_can"`
	LastChatAt *string `json:"last_chat_at"`
	CreatedAt  string  `json:"created_at"`
}

type roomByStockResponse struct {
	ChatID    string `json:"chat_id"`
	Title     string `json:"title"`
	StockCode string `json:"stock_code"`
	Existed   bool   `json:"existed"`
}

type createRoomRequest struct {
	Title     string `json:"title" validate:"max=100"`
	StockCode string `json:"stock_code"`
}

type updateRoomRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=100"`
	TrashCan *string `json:"trash_can"`
}

func toRoomResponse(room store.ChatRoom) roomResponse {
	return roomResponse{
		ChatID:     room.ID,
		Title:      room.Title,
		StockCode:  optional(room.StockCode),
		TrashCan:   room.TrashCan,
		LastChatAt: optional(room.LastChatAt),
		CreatedAt:  room.CreatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.chat.ListRooms(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp = append(resp, toRoomResponse(room))
	}
	writeJSON(w, resp)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	req := createRoomRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusBadRequest, "invalid request")
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		writeDetail(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	room, err := s.chat.CreateRoom(r.Context(), userIDFrom(r.Context()), req.Title, req.StockCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, toRoomResponse(room), http.StatusCreated)
}

func (s *Server) getRoomByStock(w http.ResponseWriter, r *http.Request) {
	room, err := s.chat.GetRoomByStock(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "stock_code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, toRoomResponse(room))
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	req := updateRoomRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeDetail(w, http.StatusBadRequest, validationDetail(err))
		return
	}

	room, err := s.chat.UpdateRoom(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()), chat.RoomUpdate{
		Title:    req.Title,
		TrashCan: req.TrashCan,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, toRoomResponse(room))
}

// enterRoomByStock is the entry point from a stock page: it returns the
// user's room for the code, restoring or creating one as needed.
func (s *Server) enterRoomByStock(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if err := validate.Var(title, "max=100"); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid title: must be 100 characters or fewer")
		return
	}

	room, existed, err := s.chat.FindOrCreateByStock(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "stock_code"), title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, roomByStockResponse{
		ChatID:    room.ID,
		Title:     room.Title,
		StockCode: room.StockCode,
		Existed:   existed,
	})
}
