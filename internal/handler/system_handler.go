package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthReport struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	Message        string `json:"message,omitempty"`
	CommentRooms   int    `json:"comment_rooms"`
	RealtimeRooms  int    `json:"realtime_connected"`
	SearchSessions int    `json:"search_sessions"`
}

// HealthCheck 报告数据库状态，以及评论房间数、其中已连上推送的房间数和搜索会话数。
func (a *API) HealthCheck(c *gin.Context) {
	report := healthReport{
		Status:         "ok",
		Database:       "up",
		CommentRooms:   a.rooms.Len(),
		RealtimeRooms:  a.rooms.Connected(),
		SearchSessions: a.searches.Len(),
	}

	status := http.StatusOK
	sqlDB, err := a.db.DB()
	switch {
	case err != nil:
		status = http.StatusInternalServerError
		report.Status, report.Database, report.Message = "error", "down", "database handle unavailable"
	case sqlDB.PingContext(c.Request.Context()) != nil:
		status = http.StatusServiceUnavailable
		report.Status, report.Database, report.Message = "error", "down", "database unreachable"
	}

	c.JSON(status, report)
}
