package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// 推送事件类型
const (
	EventNewComment      = "new_comment"
	EventCommentDeleted  = "comment_deleted"
	EventCommentRestored = "comment_restored"
)

const (
	actionJoinRoom  = "join_room"
	actionLeaveRoom = "leave_room"

	baseDelay = time.Second
	maxDelay  = 30 * time.Second
	writeWait = 10 * time.Second
)

// Event 是推送通道上的一帧消息。
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type action struct {
	Action  string `json:"action"`
	Payload string `json:"payload"`
}

// Backoff 返回第 attempt 次重连前的等待时间：min(1s*2^attempt, 30s)。
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxDelay
	}
	delay := baseDelay << attempt
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Options 配置订阅。
type Options struct {
	Dialer  *websocket.Dialer
	Logger  zerolog.Logger
	Backoff func(attempt int) time.Duration
	Buffer  int
}

// Subscription 是对某个房间的长连接订阅，断线后按退避策略自动重连，每次连上都会重新加入房间。
type Subscription struct {
	url    string
	room   string
	dialer *websocket.Dialer
	logger zerolog.Logger
	delay  func(int) time.Duration

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Subscribe 启动订阅。ctx 取消或调用 Close 后订阅结束并关闭 Events 通道。
func Subscribe(ctx context.Context, url, room string, opts Options) *Subscription {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		url:    url,
		room:   room,
		dialer: opts.Dialer,
		logger: opts.Logger.With().Str("component", "realtime").Str("room", room).Logger(),
		delay:  opts.Backoff,
		events: make(chan Event, opts.Buffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Events 返回按到达顺序投递的事件。
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Room 返回订阅的房间。
func (s *Subscription) Room() string {
	return s.room
}

// Close 离开房间并断开连接，阻塞到后台协程退出。
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			wait := s.delay(attempt)
			attempt++
			s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("realtime dial failed")
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		attempt = 0

		s.serve(ctx, conn)

		if ctx.Err() != nil {
			return
		}
		wait := s.delay(attempt)
		attempt++
		s.logger.Debug().Dur("retry_in", wait).Msg("realtime connection lost")
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (s *Subscription) serve(ctx context.Context, conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.send(conn, action{Action: actionLeaveRoom, Payload: s.room})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := s.send(conn, action{Action: actionJoinRoom, Payload: s.room}); err != nil {
		s.logger.Warn().Err(err).Msg("join room failed")
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Debug().Err(err).Msg("ignore malformed realtime frame")
			continue
		}

		select {
		case s.events <- event:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) send(conn *websocket.Conn, msg action) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// Connected 报告当前是否持有连接。
func (s *Subscription) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
