package comments

import (
	"context"
	"sync"
	"time"

	"github.com/newsfront/internal/realtime"
	"github.com/rs/zerolog"
)

// Subscriber 打开某个房间的推送订阅，realtime.Subscribe 的签名。
type Subscriber func(ctx context.Context, url, room string, opts realtime.Options) *realtime.Subscription

type room struct {
	sync  *Synchronizer
	sub   *realtime.Subscription
	ready chan struct{}
	err   error
	done  chan struct{}
}

// RegistryOptions 配置评论房间注册表。
type RegistryOptions struct {
	RealtimeURL string
	// Sync 的 Logger 字段会被 Logger 覆盖
	Sync      Options
	Subscribe Subscriber
	Logger    zerolog.Logger
}

// Registry 为每篇文章维护一个同步器，并把该文章房间的推送事件泵入同步器。
type Registry struct {
	source    Source
	url       string
	opts      Options
	subscribe Subscriber
	logger    zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
}

// NewRegistry 创建注册表。RealtimeURL 为空时不建立推送订阅。
func NewRegistry(source Source, opts RegistryOptions) *Registry {
	if opts.Subscribe == nil {
		opts.Subscribe = realtime.Subscribe
	}
	opts.Sync.Logger = opts.Logger
	return &Registry{
		source:    source,
		url:       opts.RealtimeURL,
		opts:      opts.Sync,
		subscribe: opts.Subscribe,
		logger:    opts.Logger.With().Str("component", "comment_rooms").Logger(),
		rooms:     make(map[string]*room),
	}
}

// Room 返回文章的同步器，首次访问时加载第一页并加入推送房间。
func (r *Registry) Room(ctx context.Context, articleID string) (*Synchronizer, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, context.Canceled
	}
	if existing, ok := r.rooms[articleID]; ok {
		r.mu.Unlock()
		select {
		case <-existing.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if existing.err != nil {
			return nil, existing.err
		}
		return existing.sync, nil
	}

	rm := &room{
		sync:  NewSynchronizer(articleID, r.source, r.opts),
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	r.rooms[articleID] = rm
	r.mu.Unlock()

	if err := rm.sync.Load(ctx); err != nil {
		rm.err = err
		close(rm.ready)
		close(rm.done)
		r.mu.Lock()
		if r.rooms[articleID] == rm {
			delete(r.rooms, articleID)
		}
		r.mu.Unlock()
		return nil, err
	}

	if r.url != "" {
		rm.sub = r.subscribe(context.Background(), r.url, articleID, realtime.Options{Logger: r.logger})
		go r.pump(rm)
	} else {
		close(rm.done)
	}
	close(rm.ready)
	return rm.sync, nil
}

func (r *Registry) pump(rm *room) {
	defer close(rm.done)
	for event := range rm.sub.Events() {
		if err := rm.sync.ApplyRemote(event); err != nil {
			r.logger.Warn().Err(err).Str("room", rm.sub.Room()).Str("event", event.Type).Msg("apply realtime event failed")
		}
	}
}

// Len 返回活跃房间数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Connected 返回当前持有推送连接的房间数。
func (r *Registry) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rm := range r.rooms {
		select {
		case <-rm.ready:
		default:
			continue
		}
		if rm.sub != nil && rm.sub.Connected() {
			n++
		}
	}
	return n
}

// Sweep 关闭空闲超过 idle 且没有订阅者的房间，返回关闭的数量。
func (r *Registry) Sweep(now time.Time, idle time.Duration) int {
	r.mu.Lock()
	var stale []*room
	for id, rm := range r.rooms {
		select {
		case <-rm.ready:
		default:
			continue
		}
		if rm.sync.Idle(now, idle) {
			delete(r.rooms, id)
			stale = append(stale, rm)
		}
	}
	r.mu.Unlock()

	for _, rm := range stale {
		r.shutdown(rm)
	}
	if len(stale) > 0 {
		r.logger.Debug().Int("closed", len(stale)).Msg("idle comment rooms closed")
	}
	return len(stale)
}

// ReconcileAll 对所有房间重新拉取第一页。
func (r *Registry) ReconcileAll(ctx context.Context) error {
	r.mu.Lock()
	syncs := make([]*Synchronizer, 0, len(r.rooms))
	for _, rm := range r.rooms {
		select {
		case <-rm.ready:
			if rm.err == nil {
				syncs = append(syncs, rm.sync)
			}
		default:
		}
	}
	r.mu.Unlock()

	var firstErr error
	for _, s := range syncs {
		if err := s.Reconcile(ctx); err != nil {
			r.logger.Warn().Err(err).Str("article_id", s.ArticleID()).Msg("reconcile comments failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close 离开所有房间。
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	rooms := r.rooms
	r.rooms = make(map[string]*room)
	r.mu.Unlock()

	for _, rm := range rooms {
		<-rm.ready
		r.shutdown(rm)
	}
}

func (r *Registry) shutdown(rm *room) {
	if rm.sub != nil {
		rm.sub.Close()
	}
	<-rm.done
	rm.sync.closeWatchers()
}
