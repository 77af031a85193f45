package main

import (
	"github.com/gin-gonic/gin"

	"github.com/nexusesi/backend/internal/alerts"
	"github.com/nexusesi/backend/internal/auth"
	"github.com/nexusesi/backend/internal/committees"
	"github.com/nexusesi/backend/internal/events"
	"github.com/nexusesi/backend/internal/institutions"
	"github.com/nexusesi/backend/internal/meetings"
	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/notifications"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/internal/tasks"
	"github.com/nexusesi/backend/pkg/response"
)

type handlers struct {
	auth          *auth.Handler
	institutions  *institutions.Handler
	events        *events.Handler
	committees    *committees.Handler
	tasks         *tasks.Handler
	meetings      *meetings.Handler
	alerts        *alerts.Handler
	notifications *notifications.Handler
	ws            gin.HandlerFunc
}

func registerRoutes(router *gin.Engine, h handlers, jwt, jwtQuery gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public
	router.GET("/institutions", h.institutions.ListPublic)
	router.GET("/public/meetings/check-in/:token/validate", h.meetings.ValidateQR)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.auth.Login)
		authGroup.POST("/register", h.auth.Register)
		authGroup.GET("/me", jwt, h.auth.Me)
	}

	// The bearer token identifies who checks in.
	router.POST("/public/meetings/check-in/:token", jwt, h.meetings.CheckIn)

	router.GET("/ws", jwtQuery, h.ws)

	admin := router.Group("/admin", jwt)
	{
		inst := admin.Group("/institutions", middleware.RequirePermission(policy.InstitutionsManage))
		inst.GET("", h.institutions.List)
		inst.POST("", h.institutions.Create)
		inst.GET("/:id", h.institutions.Get)
		inst.PUT("/:id", h.institutions.Update)
		inst.PUT("/:id/toggle", h.institutions.Toggle)

		users := admin.Group("/users", middleware.RequirePermission(policy.UsersManage))
		users.GET("", h.auth.ListUsers)
		users.POST("", h.auth.CreateUser)
		users.PUT("/:id/role", h.auth.ChangeRole)
		users.PUT("/:id/status", h.auth.SetStatus)
	}

	api := router.Group("", jwt)
	{
		// Events
		api.GET("/events", h.events.List)
		api.POST("/events", h.events.Create)
		api.GET("/events/:id", h.events.Get)
		api.PUT("/events/:id", h.events.Update)
		api.DELETE("/events/:id", h.events.Delete)
		api.PUT("/events/:id/status", h.events.ChangeStatus)
		api.PUT("/events/:id/finish", h.events.Finish)
		api.POST("/events/:id/participate", h.events.Participate)
		api.POST("/events/:id/leave", h.events.Leave)
		api.GET("/events/:id/participants", h.events.Participants)
		api.POST("/events/:id/reuse", h.events.Reuse)

		// Committees
		api.GET("/events/:id/committees", h.committees.ListByEvent)
		api.POST("/events/:id/committees", h.committees.Create)
		api.PUT("/committees/:id", h.committees.Update)
		api.DELETE("/committees/:id", h.committees.Delete)
		api.GET("/committees/:id/members", h.committees.Members)
		api.POST("/committees/:id/members", h.committees.AddMember)
		api.DELETE("/committees/:id/members/:userId", h.committees.RemoveMember)

		// Tasks
		api.GET("/events/:id/tasks", h.tasks.ListByEvent)
		api.POST("/events/:id/tasks", h.tasks.Create)
		api.GET("/tasks/mine", h.tasks.Mine)
		api.GET("/tasks/:id", h.tasks.Get)
		api.PUT("/tasks/:id", h.tasks.Update)
		api.DELETE("/tasks/:id", h.tasks.Delete)
		api.POST("/tasks/:id/assign", h.tasks.Assign)
		api.PUT("/tasks/:id/complete", h.tasks.Complete)
		api.PUT("/tasks/:id/status", h.tasks.ChangeStatus)
		api.GET("/tasks/:id/progress", h.tasks.Progress)
		api.POST("/tasks/:id/progress", h.tasks.ReportProgress)
		api.GET("/tasks/:id/incidents", h.tasks.Incidents)
		api.POST("/tasks/:id/incidents", h.tasks.ReportIncident)
		api.PUT("/incidents/:id/resolve", h.tasks.ResolveIncident)

		// Meetings
		api.GET("/events/:id/meetings", h.meetings.ListByEvent)
		api.POST("/events/:id/meetings", h.meetings.Create)
		api.GET("/meetings/:id", h.meetings.Get)
		api.PUT("/meetings/:id/cancel", h.meetings.Cancel)
		api.POST("/meetings/:id/respond", h.meetings.Respond)
		api.POST("/meetings/:id/generate-qr", h.meetings.GenerateQR)
		api.GET("/meetings/:id/attendance", h.meetings.Attendance)
		api.POST("/meetings/:id/attendance", h.meetings.RecordManual)

		// Alerts and notifications
		api.GET("/alerts", h.alerts.ListMine)
		api.PUT("/alerts/read-all", h.alerts.MarkAllRead)
		api.PUT("/alerts/:id/read", h.alerts.MarkRead)
		api.GET("/notifications", h.notifications.ListMine)
		api.PUT("/notifications/read-all", h.notifications.MarkAllRead)
		api.PUT("/notifications/:id/read", h.notifications.MarkRead)
	}
}
