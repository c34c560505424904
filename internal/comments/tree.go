package comments

import (
	"github.com/newsfront/internal/contentapi"
)

// MaxReplyDepth 超过该层级的评论不再提供回复入口，数据模型本身不限制层级。
const MaxReplyDepth = 10

type node struct {
	comment contentapi.Comment
	parent  *node
	replies []*node

	replyPage    int
	replyHasMore bool
}

func (n *node) depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Tree 是一篇文章的评论树。通过 id 索引定位节点，删除只打标记不移除节点。
type Tree struct {
	roots []*node
	index map[string]*node

	page    int
	total   int
	limit   int
	hasMore bool
}

// NewTree 创建空树。
func NewTree() *Tree {
	return &Tree{index: make(map[string]*node)}
}

// Len 返回已加载的节点数。
func (t *Tree) Len() int {
	return len(t.index)
}

// Contains 判断节点是否已加载。
func (t *Tree) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Get 返回节点记录，不含子回复。
func (t *Tree) Get(id string) (contentapi.Comment, bool) {
	n, ok := t.index[id]
	if !ok {
		return contentapi.Comment{}, false
	}
	return n.comment, true
}

// Insert 将评论插入到列表头部。同 id 已存在时不做任何事；
// 父评论未加载时丢弃该回复并返回 false。
func (t *Tree) Insert(c contentapi.Comment) bool {
	if c.ID == "" || t.Contains(c.ID) {
		return false
	}

	if c.ParentID == "" {
		n := t.attach(c, nil)
		t.roots = append([]*node{n}, t.roots...)
		t.total++
		return true
	}

	parent, ok := t.index[c.ParentID]
	if !ok {
		return false
	}
	n := t.attach(c, parent)
	parent.replies = append([]*node{n}, parent.replies...)
	return true
}

// attach 建立节点并登记索引，记录中自带的回复会一并展开，重复 id 被跳过。
func (t *Tree) attach(c contentapi.Comment, parent *node) *node {
	nested := c.Replies
	c.Replies = nil

	n := &node{comment: c, parent: parent, replyPage: 0, replyHasMore: true}
	t.index[c.ID] = n

	for _, reply := range nested {
		if reply.ID == "" || t.Contains(reply.ID) {
			continue
		}
		if reply.ParentID == "" {
			reply.ParentID = c.ID
		}
		n.replies = append(n.replies, t.attach(reply, n))
	}
	return n
}

// SetDeleted 就地切换软删除标记，保留位置与子回复。节点不存在时返回 false。
func (t *Tree) SetDeleted(id string, deleted bool) bool {
	n, ok := t.index[id]
	if !ok {
		return false
	}
	n.comment.IsDeleted = deleted
	return true
}

// Replace 用服务器确认的记录替换节点字段，子回复与位置不变。
func (t *Tree) Replace(c contentapi.Comment) bool {
	n, ok := t.index[c.ID]
	if !ok {
		return false
	}
	c.Replies = nil
	c.ParentID = n.comment.ParentID
	if c.User == nil {
		c.User = n.comment.User
	}
	n.comment = c
	return true
}

// MergeTopLevel 合并一页顶层评论：第一页替换整棵树，后续页去重后追加。
func (t *Tree) MergeTopLevel(page int, comments []contentapi.Comment, meta contentapi.Meta) int {
	if page <= 1 {
		t.roots = nil
		t.index = make(map[string]*node)
		page = 1
	}

	added := 0
	for _, c := range comments {
		if c.ID == "" || t.Contains(c.ID) {
			continue
		}
		c.ParentID = ""
		t.roots = append(t.roots, t.attach(c, nil))
		added++
	}

	t.page = page
	t.total = meta.Total
	t.limit = meta.Limit
	t.hasMore = page < meta.TotalPages()
	return added
}

// Reconcile 将一页服务器记录合并进树：已存在的节点以服务器记录为准，
// 缺失的顶层评论按服务器顺序放到列表头部。
func (t *Tree) Reconcile(comments []contentapi.Comment) int {
	changed := 0
	var missing []*node
	for _, c := range comments {
		if c.ID == "" {
			continue
		}
		if t.Contains(c.ID) {
			if t.Replace(c) {
				changed++
			}
			continue
		}
		c.ParentID = ""
		missing = append(missing, t.attach(c, nil))
		t.total++
		changed++
	}
	if len(missing) > 0 {
		t.roots = append(missing, t.roots...)
	}
	return changed
}

// MergeReplies 合并某条评论的一页回复。每个父评论独立记录页码：
// 返回条数少于 limit 视为已加载完。父评论不存在时返回 false。
func (t *Tree) MergeReplies(parentID string, page int, replies []contentapi.Comment, limit int) bool {
	parent, ok := t.index[parentID]
	if !ok {
		return false
	}

	for _, reply := range replies {
		if reply.ID == "" || t.Contains(reply.ID) {
			continue
		}
		reply.ParentID = parentID
		parent.replies = append(parent.replies, t.attach(reply, parent))
	}

	parent.replyPage = page
	parent.replyHasMore = limit > 0 && len(replies) >= limit
	return true
}

// ReplyCursor 返回父评论下一次应加载的页码以及是否可能还有更多。
func (t *Tree) ReplyCursor(parentID string) (next int, hasMore bool, ok bool) {
	parent, ok := t.index[parentID]
	if !ok {
		return 0, false, false
	}
	return parent.replyPage + 1, parent.replyHasMore, true
}

// Cursor 返回顶层分页状态。
func (t *Tree) Cursor() (page int, hasMore bool) {
	return t.page, t.hasMore
}

// View 是评论树的只读快照节点。
type View struct {
	contentapi.Comment
	Replies        []View `json:"replies"`
	Depth          int    `json:"depth"`
	CanReply       bool   `json:"can_reply"`
	RepliesPage    int    `json:"replies_page"`
	HasMoreReplies bool   `json:"has_more_replies"`
}

// Snapshot 是整棵树在某一时刻的拷贝。
type Snapshot struct {
	Comments []View `json:"comments"`
	Page     int    `json:"page"`
	Total    int    `json:"total"`
	HasMore  bool   `json:"has_more"`
}

// Snapshot 深拷贝当前树。
func (t *Tree) Snapshot() Snapshot {
	return Snapshot{
		Comments: viewsOf(t.roots),
		Page:     t.page,
		Total:    t.total,
		HasMore:  t.hasMore,
	}
}

func viewsOf(nodes []*node) []View {
	views := make([]View, 0, len(nodes))
	for _, n := range nodes {
		depth := n.depth()
		views = append(views, View{
			Comment:        n.comment,
			Replies:        viewsOf(n.replies),
			Depth:          depth,
			CanReply:       depth < MaxReplyDepth && !n.comment.IsDeleted,
			RepliesPage:    n.replyPage,
			HasMoreReplies: n.replyHasMore,
		})
	}
	return views
}
