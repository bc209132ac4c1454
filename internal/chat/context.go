package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/metrics"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

const (
	snippetLimit     = 200
	untitled         = "제목 없음"
	unknownPublished = "발행일 미상"
	unknownDate      = "날짜 미상"
	newsDateLayout   = "2006-01-02"
)

// NewsSummary is the system block injected ahead of the transcript and the
// documents it was built from.
type NewsSummary struct {
	Text      string
	Documents []news.Document
}

// BuildContext loads up to limit recent messages of the room, oldest first,
// and converts them to provider messages behind an optional system prompt.
// The raw history is returned alongside.
func (s *Service) BuildContext(ctx context.Context, roomID string, limit int, systemPrompt string) ([]llm.Message, []store.Message, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	history, err := s.store.ListRecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	messages := make([]llm.Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	}
	for _, msg := range history {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return messages, history, nil
}

// LatestUserText returns the content of the newest user message.
func LatestUserText(history []store.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

// BuildNewsSummary looks up news for the stock. The latest user text is
// tried first and the bare stock code second; the first query with results
// wins. Any retrieval failure yields ok == false.
func (s *Service) BuildNewsSummary(ctx context.Context, stockCode string, latestUserText string) (NewsSummary, bool) {
	if !s.cfg.NewsEnabled || stockCode == "" || s.news == nil || !s.news.Enabled() {
		metrics.NewsLookups.WithLabelValues("disabled").Inc()
		return NewsSummary{}, false
	}

	queries := make([]string, 0, 2)
	if strings.TrimSpace(latestUserText) != "" {
		queries = append(queries, latestUserText)
	}
	queries = append(queries, stockCode)

	var docs []news.Document
	for _, query := range queries {
		found, err := s.search(ctx, query)
		if err != nil {
			s.log.Warn().Err(err).Str("stock_code", stockCode).Msg("news retrieval failed")
			metrics.NewsLookups.WithLabelValues("error").Inc()
			return NewsSummary{}, false
		}
		if len(found) > 0 {
			docs = found
			break
		}
	}
	if len(docs) == 0 {
		metrics.NewsLookups.WithLabelValues("empty").Inc()
		return NewsSummary{}, false
	}
	if len(docs) > s.cfg.NewsSummaryLimit {
		docs = docs[:s.cfg.NewsSummaryLimit]
	}
	metrics.NewsLookups.WithLabelValues("hit").Inc()
	return NewsSummary{Text: formatNewsSummary(stockCode, docs), Documents: docs}, true
}

// search calls the retriever and turns a panic into an error.
func (s *Service) search(ctx context.Context, query string) (docs []news.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("news retriever panic: %v", r)
		}
	}()
	return s.news.SimilaritySearch(ctx, query, s.cfg.NewsTopK, s.cfg.NewsThreshold)
}

func formatNewsSummary(stockCode string, docs []news.Document) string {
	var b strings.Builder
	b.WriteString("[뉴스 요약]\n")
	b.WriteString(stockCode)
	b.WriteString(" 관련 최신 기사에서 추출한 핵심 내용입니다. 필요한 경우 아래 정보를 참고해 답변하세요.")
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n%d. %s (%s): %s", i+1, titleOrDefault(doc), publishedOr(doc, unknownPublished), snippet(doc.Content))
	}
	return b.String()
}

// referencesFooter renders the citation block appended to a reply.
func referencesFooter(docs []news.Document) string {
	lines := make([]string, 0, len(docs))
	for i, doc := range docs {
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", i+1, titleOrDefault(doc), publishedOr(doc, unknownDate)))
	}
	return "\n\n[참고 뉴스]\n" + strings.Join(lines, "\n")
}

// insertSummary places the news block right after the system prompt, or
// first when there is none.
func insertSummary(messages []llm.Message, summary string, hasSystemPrompt bool) []llm.Message {
	index := 0
	if hasSystemPrompt {
		index = 1
	}
	if index > len(messages) {
		index = len(messages)
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, messages[:index]...)
	out = append(out, llm.Message{Role: "system", Content: summary})
	return append(out, messages[index:]...)
}

func snippet(content string) string {
	collapsed := strings.Join(strings.FieldsFunc(content, unicode.IsSpace), " ")
	runes := []rune(collapsed)
	if len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return collapsed
}

func titleOrDefault(doc news.Document) string {
	if doc.Title == "" {
		return untitled
	}
	return doc.Title
}

func publishedOr(doc news.Document, placeholder string) string {
	if doc.PublishedAt == nil || doc.PublishedAt.IsZero() {
		return placeholder
	}
	return doc.PublishedAt.Format(newsDateLayout)
}
