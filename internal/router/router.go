package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/newsfront/internal/handler"
	"github.com/newsfront/internal/logging"
	"github.com/rs/zerolog"
)

const sessionName = "newsfront_session"

// Options 是路由层的配置。
type Options struct {
	SessionSecret string
	// CommentLimiter 限制发表评论的频率，为 nil 时不限流。
	CommentLimiter *handler.RateLimiter
	Logger         zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(opts.Logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(handler.VisitorID(), handler.LoadIdentity())

	r.GET("/healthz", api.HealthCheck)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	commentLimit := func(c *gin.Context) { c.Next() }
	if opts.CommentLimiter != nil {
		commentLimit = opts.CommentLimiter.Middleware()
	}

	v1 := r.Group("/api")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", api.Login)
			authGroup.GET("/me", api.Me)
			authGroup.POST("/logout", api.Logout)
		}

		v1.GET("/search", api.SearchArticles)
		v1.GET("/categories", api.ListCategories)
		v1.GET("/tags", api.GetTags)

		articles := v1.Group("/articles")
		{
			articles.GET("", api.ListArticles)
			articles.GET("/trending", api.ListTrending)
			articles.GET("/discussed", api.ListDiscussed)
			articles.GET("/random", api.ListRandom)
			articles.GET("/:id", api.ShowArticle)
			articles.POST("/:id/track-view", api.TrackView)

			articles.GET("/:id/comments", api.ListComments)
			articles.GET("/:id/comments/stream", api.StreamComments)
			articles.POST("/:id/comments/more", api.LoadMoreComments)
			articles.POST("/:id/comments/:commentId/replies/more", api.LoadMoreReplies)

			// 评论写操作需要登录
			writes := articles.Group("/:id/comments")
			writes.Use(handler.AuthRequired())
			{
				writes.POST("", commentLimit, api.CreateComment)
				writes.PUT("/:commentId", api.EditComment)
				writes.DELETE("/:commentId", api.DeleteComment)
				writes.PUT("/:commentId/restore", api.RestoreComment)
			}
		}

		// 后台管理路由
		admin := v1.Group("/admin")
		admin.Use(handler.AuthRequired())
		{
			admin.GET("/drafts", api.ListDrafts)
			admin.POST("/drafts", api.CreateDraft)
			admin.POST("/drafts/import", api.ImportDraft)
			admin.GET("/drafts/:id", api.GetDraft)
			admin.PUT("/drafts/:id", api.UpdateDraft)
			admin.DELETE("/drafts/:id", api.DeleteDraft)
			admin.GET("/drafts/:id/preview", api.PreviewDraft)
			admin.POST("/drafts/:id/publish", api.PublishDraft)

			admin.POST("/drafts/:id/images", api.UploadDraftImage)
			admin.GET("/drafts/:id/images/:localId/thumbnail", api.DraftImageThumbnail)
			admin.PUT("/drafts/:id/images/:localId", api.UpdateDraftImage)
			admin.PUT("/drafts/:id/images/:localId/primary", api.SetDraftPrimaryImage)
			admin.DELETE("/drafts/:id/images/:localId", api.DeleteDraftImage)

			admin.POST("/articles/:id/edit", api.EditArticle)
			admin.POST("/articles/:id/redirects", api.AddRedirect)
			admin.DELETE("/articles/:id/redirects/:redirectId", api.DeleteRedirect)

			admin.POST("/categories", api.CreateCategory)
			admin.PUT("/categories/:id", api.UpdateCategory)
			admin.POST("/tags", api.CreateTag)
			admin.PUT("/tags/:id", api.UpdateTag)

			admin.GET("/analytics", api.ShowAnalytics)
			admin.GET("/logs/:kind", api.ListLogs)
			admin.GET("/logs/:kind/:id/diff", api.DiffLog)
		}
	}

	return r
}
