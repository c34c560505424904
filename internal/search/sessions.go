package search

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Surface 区分同一访客的不同搜索入口，各自独立去抖。
type Surface string

const (
	SurfaceQuick Surface = "quick"
	SurfacePage  Surface = "page"
)

// Limit 返回入口的默认每页条数。
func (s Surface) Limit() int {
	if s == SurfaceQuick {
		return 5
	}
	return 12
}

// ParseSurface 将请求参数转为入口，未知值视为搜索页。
func ParseSurface(raw string) Surface {
	if Surface(raw) == SurfaceQuick {
		return SurfaceQuick
	}
	return SurfacePage
}

// Sessions 按访客与入口保存搜索会话。
type Sessions struct {
	searcher Searcher
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions 创建会话表。
func NewSessions(searcher Searcher, debounce time.Duration, logger zerolog.Logger) *Sessions {
	return &Sessions{
		searcher: searcher,
		debounce: debounce,
		logger:   logger.With().Str("component", "search").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Get 返回访客在该入口上的会话，不存在时创建。
func (s *Sessions) Get(visitorID string, surface Surface) *Session {
	key := visitorID + ":" + string(surface)

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session
	}
	session := NewSession(s.searcher, s.debounce, surface.Limit(), s.logger.With().Str("surface", string(surface)).Logger())
	s.sessions[key] = session
	return session
}

// Len 返回会话数量。
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep 关闭超过 idle 未使用的会话。
func (s *Sessions) Sweep(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	var stale []*Session
	for key, session := range s.sessions {
		if now.Sub(session.LastUsed()) > idle {
			delete(s.sessions, key)
			stale = append(stale, session)
		}
	}
	s.mu.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}

// Close 关闭全部会话。
func (s *Sessions) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
