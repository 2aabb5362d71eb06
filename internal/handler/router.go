package handler

import "github.com/gin-gonic/gin"

// Handlers groups every console handler for route registration.
type Handlers struct {
	Records       *RecordHandler
	Sessions      *SessionHandler
	Uploads       *UploadHandler
	Notifications *NotificationHandler
	Audit         *AuditHandler
}

// RegisterRoutes mounts the console API under group. Nil handlers are skipped.
func RegisterRoutes(group gin.IRouter, h Handlers) {
	if h.Records != nil {
		group.GET("/entities", h.Records.Entities)
		group.GET("/records/:entity", h.Records.List)
		group.GET("/records/:entity/export", h.Records.Export)
		group.POST("/records/:entity", h.Records.Create)
		group.DELETE("/records/:entity/:id", h.Records.Delete)
	}

	if h.Sessions != nil {
		sessions := group.Group("/sessions")
		sessions.POST("", h.Sessions.Open)
		sessions.GET("/:id", h.Sessions.Get)
		sessions.PUT("/:id/fields/:key", h.Sessions.SetField)
		sessions.POST("/:id/submit", h.Sessions.Submit)
		sessions.POST("/:id/confirm", h.Sessions.Confirm)
		sessions.POST("/:id/back", h.Sessions.Back)
		sessions.POST("/:id/save", h.Sessions.Save)
		sessions.DELETE("/:id", h.Sessions.Cancel)
	}

	if h.Uploads != nil {
		group.POST("/uploads", h.Uploads.Upload)
		group.GET("/uploads/:token", h.Uploads.Preview)
	}

	if h.Notifications != nil {
		group.GET("/notifications", h.Notifications.Summary)
		group.POST("/notifications/read", h.Notifications.MarkRead)
	}

	if h.Audit != nil {
		group.GET("/audit/:entity/:id", h.Audit.History)
	}
}
