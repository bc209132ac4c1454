package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
	"github.com/YU-SoftwareEng/AlphaBot/internal/workflows"
)

type messageRequest struct {
	Content      string `json:"content" validate:"required"`
	SystemPrompt string `json:"system_prompt"`
}

type messageResponse struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type chatCompletionResponse struct {
	UserMessage      messageResponse `json:"user_message"`
	AssistantMessage messageResponse `json:"assistant_message"`
	ReferencedNews   []news.Document `json:"referenced_news"`
}

func toMessageResponse(msg store.Message) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		ChatID:    msg.RoomID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func decodeMessage(w http.ResponseWriter, r *http.Request) (messageRequest, bool) {
	req := messageRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		writeDetail(w, http.StatusBadRequest, validationDetail(err))
		return req, false
	}
	return req, true
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chat.ListMessages(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()), r.URL.Query().Get("last_message_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, toMessageResponse(msg))
	}
	writeJSON(w, resp)
}

// addMessage stores the user's message. When a workflow service is wired the
// reply is generated in the background and the request is accepted.
func (s *Server) addMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMessage(w, r)
	if !ok {
		return
	}
	roomID := chi.URLParam(r, "id")
	userID := userIDFrom(r.Context())

	msg, err := s.chat.SaveUserMessage(r.Context(), roomID, userID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.workflows != nil {
		err := s.workflows.StartReply(r.Context(), workflows.ReplyInput{
			RoomID:       msg.RoomID,
			UserID:       userID,
			MessageID:    msg.ID,
			SystemPrompt: req.SystemPrompt,
		})
		if err == nil {
			writeJSONStatus(w, toMessageResponse(msg), http.StatusAccepted)
			return
		}
		s.log.Warn().Err(err).Str("room_id", msg.RoomID).Msg("start reply workflow failed")
	}
	writeJSONStatus(w, toMessageResponse(msg), http.StatusCreated)
}

func (s *Server) chatCompletions(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMessage(w, r)
	if !ok {
		return
	}

	reply, err := s.chat.CreateMessageAndReply(r.Context(), chi.URLParam(r, "id"), userIDFrom(r.Context()), req.Content, req.SystemPrompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	docs := reply.Documents
	if docs == nil {
		docs = []news.Document{}
	}
	writeJSONStatus(w, chatCompletionResponse{
		UserMessage:      toMessageResponse(reply.UserMessage),
		AssistantMessage: toMessageResponse(reply.AssistantMessage),
		ReferencedNews:   docs,
	}, http.StatusCreated)
}
