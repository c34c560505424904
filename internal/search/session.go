package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/newsfront/internal/contentapi"
	"github.com/rs/zerolog"
)

// ErrSuperseded 表示该次查询已被同一会话中更新的查询取代。
var ErrSuperseded = errors.New("search superseded by a newer query")

// Searcher 执行一次上游搜索。
type Searcher interface {
	SearchArticles(ctx context.Context, q contentapi.SearchQuery) (contentapi.SearchResult, error)
}

// Outcome 是一次提交的最终结果。
type Outcome struct {
	Query  contentapi.SearchQuery
	Result contentapi.SearchResult
	Err    error
}

// Session 是一个搜索框的状态：静默期内的连续输入只触发最后一次上游请求，
// 新查询会取消仍在进行的旧请求。
type Session struct {
	searcher Searcher
	debounce time.Duration
	limit    int
	logger   zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	pending  chan Outcome
	inflight context.CancelFunc
	lastUsed time.Time
	closed   bool
}

// NewSession 创建会话，limit 是未指定时每页的条数。
func NewSession(searcher Searcher, debounce time.Duration, limit int, logger zerolog.Logger) *Session {
	return &Session{
		searcher: searcher,
		debounce: debounce,
		limit:    limit,
		logger:   logger,
		lastUsed: time.Now(),
	}
}

// Submit 提交查询并立即返回。通道恰好收到一个结果：被取代时为 ErrSuperseded。
// 空查询不访问上游，直接得到空结果。
func (s *Session) Submit(q contentapi.SearchQuery) <-chan Outcome {
	q.Q = strings.TrimSpace(q.Q)
	if q.Limit <= 0 {
		q.Limit = s.limit
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	out := make(chan Outcome, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	s.lastUsed = time.Now()
	s.supersedeLocked()

	if s.closed {
		out <- Outcome{Query: q, Err: ErrSuperseded}
		return out
	}
	if q.Q == "" {
		out <- Outcome{Query: q, Result: contentapi.SearchResult{Data: []contentapi.Article{}, Meta: contentapi.Meta{Page: q.Page, Limit: q.Limit}}}
		return out
	}

	s.pending = out
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen, q, out) })
	return out
}

// supersedeLocked 取消尚未发出的查询与正在进行的上游请求。
func (s *Session) supersedeLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		s.pending <- Outcome{Err: ErrSuperseded}
		s.pending = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}
}

func (s *Session) fire(gen uint64, q contentapi.SearchQuery, out chan Outcome) {
	s.mu.Lock()
	if gen != s.gen || s.pending != out {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.timer = nil
	ctx, cancel := context.WithCancel(context.Background())
	s.inflight = cancel
	s.mu.Unlock()
	defer cancel()

	result, err := s.searcher.SearchArticles(ctx, q)

	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.inflight = nil
	}
	s.mu.Unlock()

	if !current {
		s.logger.Debug().Str("query", q.Q).Msg("search superseded")
		out <- Outcome{Query: q, Err: ErrSuperseded}
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("query", q.Q).Msg("search failed")
	}
	out <- Outcome{Query: q, Result: result, Err: err}
}

// Query 提交并等待结果。
func (s *Session) Query(ctx context.Context, q contentapi.SearchQuery) (contentapi.SearchResult, error) {
	select {
	case outcome := <-s.Submit(q):
		return outcome.Result, outcome.Err
	case <-ctx.Done():
		return contentapi.SearchResult{}, ctx.Err()
	}
}

// LastUsed 返回最近一次提交的时间。
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close 取消所有未完成的查询，之后的提交都会立即被取代。
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.supersedeLocked()
}
