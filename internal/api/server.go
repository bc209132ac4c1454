package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/config"
	"github.com/YU-SoftwareEng/AlphaBot/internal/metrics"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
	"github.com/YU-SoftwareEng/AlphaBot/internal/workflows"
)

type Server struct {
	chat      *chat.Service
	store     store.Store
	workflows WorkflowService
	cfg       config.Config
	log       zerolog.Logger
}

// WorkflowService hands assistant replies off to a background worker. A nil
// WorkflowService means replies are only produced by chat-completions.
type WorkflowService interface {
	StartReply(ctx context.Context, input workflows.ReplyInput) error
}

func NewServer(service *chat.Service, store store.Store, workflows WorkflowService, cfg config.Config, log zerolog.Logger) *Server {
	return &Server{
		chat:      service,
		store:     store,
		workflows: workflows,
		cfg:       cfg,
		log:       log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(requestMetrics)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/rooms", s.listRooms)
		r.Post("/rooms", s.createRoom)
		r.Get("/rooms/by-stock/{stock_code}", s.getRoomByStock)
		r.Patch("/rooms/{id}", s.updateRoom)
		r.Get("/rooms/{id}/messages", s.listMessages)
		r.Post("/rooms/{id}/messages", s.addMessage)
		r.Post("/rooms/{id}/chat-completions", s.chatCompletions)
		r.Put("/v1/chats/by-stock/{stock_code}", s.enterRoomByStock)
	})

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodOptions {
		return true
	}
	if method == http.MethodGet {
		switch cleanPath {
		case "/health", "/ready", "/metrics":
			return true
		}
	}
	return false
}

// requestMetrics counts requests by route pattern so room ids do not blow up
// label cardinality.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if strings.TrimSpace(s.cfg.OpenAIAPIKey) == "" {
		subsystems["llm"] = subsystemStatus{Status: "error", Error: "OPENAI_API_KEY is not set"}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["llm"] = subsystemStatus{Status: "ok"}
	}

	// News is optional: an unavailable retriever is reported but does not
	// fail readiness.
	switch {
	case strings.TrimSpace(s.cfg.NewsPostgresURL) == "" || !bool(s.cfg.RAGNewsEnabled):
		subsystems["news"] = subsystemStatus{Status: "skipped"}
	case !s.chat.NewsAvailable():
		subsystems["news"] = subsystemStatus{Status: "unavailable", Error: "news retriever is not connected"}
	default:
		subsystems["news"] = subsystemStatus{Status: "ok"}
	}

	if s.workflows == nil {
		subsystems["workflows"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["workflows"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
