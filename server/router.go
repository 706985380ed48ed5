package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()

	// LoggerWithFormatter middleware will write the logs to gin.DefaultWriter
	// By default gin.DefaultWriter = os.Stdout
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	limitSend := limitMessageSend(newMessageSendStore())

	apirouter := router.Group("/api/v1")
	apirouter.POST("/auth/login", s.handleLogin())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())
	authorized.GET("/logout", s.handleLogout())
	authorized.GET("/users/online", s.handleGetOnlineUsers())
	authorized.GET("/conversations", s.handleGetConversations())
	authorized.POST("/conversations/start", s.handleStartConversation())
	authorized.GET("/conversations/:id/messages", s.handleGetConversationMessages())
	authorized.PUT("/conversations/:id/read", s.handleMarkConversationRead())
	authorized.POST("/messages/send", limitSend, s.handleSendMessage())
	authorized.GET("/messages/unread-count", s.handleGetUnreadCount())
	authorized.POST("/notifications/add-token", s.handleRegisterDeviceToken())

	// The websocket upgrade carries its credential in the query string or
	// header and resolves identity itself, so it sits outside the group.
	router.GET("/ws", s.handleWebsocket())
}
