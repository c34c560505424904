package comments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/realtime"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyContent   = errors.New("comment content is required")
	ErrParentNotFound = errors.New("parent comment is not loaded")
	ErrNoMoreComments = errors.New("no more comments to load")
)

// Source 是评论数据的上游，contentapi.Client 实现了它。
type Source interface {
	ListComments(ctx context.Context, articleID string, page, limit int) (contentapi.CommentPage, error)
	ListReplies(ctx context.Context, articleID, parentID string, page, limit int) (contentapi.CommentPage, error)
	CreateComment(ctx context.Context, in contentapi.CreateCommentInput) (contentapi.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (contentapi.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	RestoreComment(ctx context.Context, id string) error
}

// Change 描述一次已应用到树上的变更，推送给 SSE 订阅者。
type Change struct {
	Kind      string `json:"kind"`
	CommentID string `json:"comment_id,omitempty"`
}

// Change kinds
const (
	ChangeCreated  = "created"
	ChangeEdited   = "edited"
	ChangeDeleted  = "deleted"
	ChangeRestored = "restored"
	ChangeLoaded   = "loaded"
)

// Options 配置同步器的分页大小。
type Options struct {
	PageSize      int
	ReplyPageSize int
	Logger        zerolog.Logger
}

// Synchronizer 持有一篇文章的评论树，串行应用分页结果、本地操作与推送事件。
// 网络调用期间不持有锁，结果返回后再在锁内修改树。
type Synchronizer struct {
	articleID string
	source    Source
	pageSize  int
	replySize int
	logger    zerolog.Logger

	mu         sync.Mutex
	tree       *Tree
	watchers   map[int]chan Change
	nextWatch  int
	lastActive time.Time
}

// NewSynchronizer 创建同步器，尚未加载任何评论。
func NewSynchronizer(articleID string, source Source, opts Options) *Synchronizer {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.ReplyPageSize <= 0 {
		opts.ReplyPageSize = 5
	}
	return &Synchronizer{
		articleID:  articleID,
		source:     source,
		pageSize:   opts.PageSize,
		replySize:  opts.ReplyPageSize,
		logger:     opts.Logger.With().Str("component", "comments").Str("article_id", articleID).Logger(),
		tree:       NewTree(),
		watchers:   make(map[int]chan Change),
		lastActive: time.Now(),
	}
}

// ArticleID 返回所属文章。
func (s *Synchronizer) ArticleID() string {
	return s.articleID
}

// Load 加载第一页顶层评论并替换当前树。
func (s *Synchronizer) Load(ctx context.Context) error {
	return s.loadPage(ctx, 1)
}

// LoadMore 加载下一页顶层评论，已无更多时返回 ErrNoMoreComments。
func (s *Synchronizer) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	page, hasMore := s.tree.Cursor()
	s.mu.Unlock()

	if !hasMore {
		return ErrNoMoreComments
	}
	return s.loadPage(ctx, page+1)
}

func (s *Synchronizer) loadPage(ctx context.Context, page int) error {
	result, err := s.source.ListComments(ctx, s.articleID, page, s.pageSize)
	if err != nil {
		return err
	}
	meta := result.Meta
	if meta.Limit <= 0 {
		meta.Limit = s.pageSize
	}

	s.mu.Lock()
	s.tree.MergeTopLevel(page, result.Data, meta)
	s.touchLocked()
	s.notifyLocked(Change{Kind: ChangeLoaded})
	s.mu.Unlock()
	return nil
}

// LoadMoreReplies 加载某条评论的下一页回复，不影响其它评论的分页状态。
func (s *Synchronizer) LoadMoreReplies(ctx context.Context, parentID string) error {
	s.mu.Lock()
	next, hasMore, ok := s.tree.ReplyCursor(parentID)
	s.mu.Unlock()

	if !ok {
		return ErrParentNotFound
	}
	if !hasMore {
		return ErrNoMoreComments
	}

	result, err := s.source.ListReplies(ctx, s.articleID, parentID, next, s.replySize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tree.MergeReplies(parentID, next, result.Data, s.replySize) {
		return ErrParentNotFound
	}
	s.touchLocked()
	s.notifyLocked(Change{Kind: ChangeLoaded, CommentID: parentID})
	return nil
}

// Create 提交评论，服务器确认后再插入树。
func (s *Synchronizer) Create(ctx context.Context, content, parentID string) (contentapi.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return contentapi.Comment{}, ErrEmptyContent
	}

	confirmed, err := s.source.CreateComment(ctx, contentapi.CreateCommentInput{
		ArticleID: s.articleID,
		Content:   content,
		ParentID:  strings.TrimSpace(parentID),
	})
	if err != nil {
		return contentapi.Comment{}, err
	}
	if confirmed.ArticleID == "" {
		confirmed.ArticleID = s.articleID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.Insert(confirmed) {
		s.notifyLocked(Change{Kind: ChangeCreated, CommentID: confirmed.ID})
	}
	s.touchLocked()
	return confirmed, nil
}

// Edit 修改评论内容，服务器确认后替换节点字段。
func (s *Synchronizer) Edit(ctx context.Context, id, content string) (contentapi.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return contentapi.Comment{}, ErrEmptyContent
	}

	confirmed, err := s.source.UpdateComment(ctx, id, content)
	if err != nil {
		return contentapi.Comment{}, err
	}
	if confirmed.ID == "" {
		confirmed.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.tree.Get(id); ok && confirmed.Content == "" {
		current.Content = content
		confirmed = current
	}
	if s.tree.Replace(confirmed) {
		s.notifyLocked(Change{Kind: ChangeEdited, CommentID: id})
	}
	s.touchLocked()
	return confirmed, nil
}

// Delete 软删除评论，服务器确认后打上删除标记。
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	if err := s.source.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.setDeleted(id, true)
	return nil
}

// Restore 恢复评论，服务器确认后清除删除标记。
func (s *Synchronizer) Restore(ctx context.Context, id string) error {
	if err := s.source.RestoreComment(ctx, id); err != nil {
		return err
	}
	s.setDeleted(id, false)
	return nil
}

func (s *Synchronizer) setDeleted(id string, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.SetDeleted(id, deleted) {
		kind := ChangeRestored
		if deleted {
			kind = ChangeDeleted
		}
		s.notifyLocked(Change{Kind: kind, CommentID: id})
	}
	s.touchLocked()
}

type idPayload struct {
	ID string `json:"id"`
}

// ApplyRemote 按到达顺序应用一条推送事件。找不到目标节点的删除或恢复被忽略。
func (s *Synchronizer) ApplyRemote(event realtime.Event) error {
	switch event.Type {
	case realtime.EventNewComment:
		var comment contentapi.Comment
		if err := json.Unmarshal(event.Payload, &comment); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		if comment.ArticleID != "" && comment.ArticleID != s.articleID {
			return nil
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.tree.Insert(comment) {
			s.notifyLocked(Change{Kind: ChangeCreated, CommentID: comment.ID})
		} else if comment.ParentID != "" && !s.tree.Contains(comment.ParentID) {
			s.logger.Debug().Str("comment_id", comment.ID).Str("parent_id", comment.ParentID).Msg("drop reply to unloaded parent")
		}
		return nil

	case realtime.EventCommentDeleted, realtime.EventCommentRestored:
		var payload idPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		deleted := event.Type == realtime.EventCommentDeleted

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.tree.SetDeleted(payload.ID, deleted) {
			s.logger.Debug().Str("comment_id", payload.ID).Str("event", event.Type).Msg("event for unknown comment ignored")
			return nil
		}
		kind := ChangeRestored
		if deleted {
			kind = ChangeDeleted
		}
		s.notifyLocked(Change{Kind: kind, CommentID: payload.ID})
		return nil
	}
	return nil
}

// Reconcile 重新拉取第一页并合并，已存在的节点以服务器记录为准。
func (s *Synchronizer) Reconcile(ctx context.Context) error {
	result, err := s.source.ListComments(ctx, s.articleID, 1, s.pageSize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.Reconcile(result.Data) > 0 {
		s.notifyLocked(Change{Kind: ChangeLoaded})
	}
	return nil
}

// Snapshot 返回当前评论树的拷贝。
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.tree.Snapshot()
}

// Watch 订阅变更通知，返回的函数用于取消订阅。通知通道满时丢弃本次通知。
func (s *Synchronizer) Watch() (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatch
	s.nextWatch++
	ch := make(chan Change, 16)
	s.watchers[id] = ch
	s.touchLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
			s.touchLocked()
		})
	}
}

// closeWatchers 关闭全部订阅。
func (s *Synchronizer) closeWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

// Idle 判断没有订阅者且自 now 起已空闲超过 d。
func (s *Synchronizer) Idle(now time.Time, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers) == 0 && now.Sub(s.lastActive) > d
}

func (s *Synchronizer) touchLocked() {
	s.lastActive = time.Now()
}

func (s *Synchronizer) notifyLocked(change Change) {
	for _, ch := range s.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}
