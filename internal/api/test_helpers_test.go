package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/config"
	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store/memory"
	"github.com/YU-SoftwareEng/AlphaBot/internal/workflows"
)

const testSecret = "test-secret"

// MockStore is used where a test needs a store failure; the happy paths run
// against the in-memory store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) GetRoom(ctx context.Context, roomID string, userID string) (*store.ChatRoom, error) {
	args := m.Called(ctx, roomID, userID)
	if value := args.Get(0); value != nil {
		return value.(*store.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListRooms(ctx context.Context, userID string) ([]store.ChatRoom, error) {
	args := m.Called(ctx, userID)
	var result []store.ChatRoom
	if value := args.Get(0); value != nil {
		result = value.([]store.ChatRoom)
	}
	return result, args.Error(1)
}

func (m *MockStore) FindActiveRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	args := m.Called(ctx, userID, stockCode)
	if value := args.Get(0); value != nil {
		return value.(*store.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) FindLatestTrashedRoomByStock(ctx context.Context, userID string, stockCode string) (*store.ChatRoom, error) {
	args := m.Called(ctx, userID, stockCode)
	if value := args.Get(0); value != nil {
		return value.(*store.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreateRoom(ctx context.Context, room store.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStore) UpdateRoom(ctx context.Context, room store.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockStore) AddMessage(ctx context.Context, msg store.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]store.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var result []store.Message
	if value := args.Get(0); value != nil {
		result = value.([]store.Message)
	}
	return result, args.Error(1)
}

func (m *MockStore) ListMessages(ctx context.Context, roomID string, afterMessageID string) ([]store.Message, error) {
	args := m.Called(ctx, roomID, afterMessageID)
	var result []store.Message
	if value := args.Get(0); value != nil {
		result = value.([]store.Message)
	}
	return result, args.Error(1)
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartReply(ctx context.Context, input workflows.ReplyInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

type stubGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func (g *stubGenerator) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	server    *httptest.Server
	store     store.Store
	generator *stubGenerator
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:    testSecret,
		OpenAIAPIKey: "sk-test",
	}
}

type stubRetriever struct{}

func (stubRetriever) Enabled() bool { return true }

func (stubRetriever) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]news.Document, error) {
	return nil, nil
}

func newTestServer(t *testing.T, st store.Store, workflowService WorkflowService, cfg config.Config) *testEnv {
	t.Helper()
	return newTestServerWithRetriever(t, st, workflowService, cfg, nil)
}

func newTestServerWithRetriever(t *testing.T, st store.Store, workflowService WorkflowService, cfg config.Config, retriever news.Retriever) *testEnv {
	t.Helper()
	if st == nil {
		st = memory.New()
	}
	generator := &stubGenerator{text: "assistant reply"}
	service := chat.NewService(st, generator, retriever, chat.Config{Model: "gpt-4o-mini"}, zerolog.Nop())
	server := NewServer(service, st, workflowService, cfg, zerolog.Nop())
	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)
	return &testEnv{server: httpServer, store: st, generator: generator}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	return signToken(t, testSecret, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

// do sends an authenticated request as userID; an empty userID sends none.
func (e *testEnv) do(t *testing.T, method string, path string, userID string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userToken(t, userID))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var value T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&value))
	return value
}

func (e *testEnv) seedRoom(t *testing.T, userID string, stockCode string) roomByStockResponse {
	t.Helper()
	resp := e.do(t, http.MethodPut, "/v1/chats/by-stock/"+stockCode, userID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[roomByStockResponse](t, resp)
}
