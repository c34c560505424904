package handler

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/newsfront/internal/comments"
	"github.com/newsfront/internal/contentapi"
	"github.com/newsfront/internal/search"
	"github.com/newsfront/internal/service"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Upstream 是处理器直接透传给内容服务的调用。
type Upstream interface {
	Login(ctx context.Context, in contentapi.LoginInput) (contentapi.LoginResult, error)
	Me(ctx context.Context) (contentapi.User, error)
	Logout(ctx context.Context) error

	Categories(ctx context.Context) ([]contentapi.Category, error)
	CreateCategory(ctx context.Context, in contentapi.CategoryInput) (contentapi.Category, error)
	UpdateCategory(ctx context.Context, id string, in contentapi.CategoryInput) (contentapi.Category, error)
	Tags(ctx context.Context) ([]contentapi.Tag, error)
	CreateTag(ctx context.Context, in contentapi.TagInput) (contentapi.Tag, error)
	UpdateTag(ctx context.Context, id string, in contentapi.TagInput) (contentapi.Tag, error)

	Analytics(ctx context.Context, advanced bool, query url.Values) (json.RawMessage, error)
	Logs(ctx context.Context, kind string, query url.Values) (contentapi.LogPage, error)
	LogEntry(ctx context.Context, kind, id string) (contentapi.LogEntry, error)

	AddRedirect(ctx context.Context, articleID, fromSlug string) error
	DeleteRedirect(ctx context.Context, articleID, redirectID string) error
}

// Deps 是构造处理器所需的依赖。
type Deps struct {
	DB       *gorm.DB
	Upstream Upstream
	Reader   *service.ReaderService
	Drafts   *service.DraftService
	Rooms    *comments.Registry
	Searches *search.Sessions
	Logger   zerolog.Logger
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	upstream Upstream
	reader   *service.ReaderService
	drafts   *service.DraftService
	rooms    *comments.Registry
	searches *search.Sessions
	logger   zerolog.Logger
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Deps) *API {
	return &API{
		db:       deps.DB,
		upstream: deps.Upstream,
		reader:   deps.Reader,
		drafts:   deps.Drafts,
		rooms:    deps.Rooms,
		searches: deps.Searches,
		logger:   deps.Logger.With().Str("component", "http").Logger(),
	}
}
