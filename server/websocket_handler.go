package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shashank8536/Campus-MarketPlace/services/jwt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebsocket upgrades the connection and hands it to the hub. A failed
// credential does not reject the upgrade; the connection starts
// unauthenticated and may still bind via the authenticate event.
func (s *Server) handleWebsocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := s.resolveSocketIdentity(c)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		s.Hub.HandleConnection(conn, userID)
	}
}

// resolveSocketIdentity reads the session token from the token query
// parameter or the Authorization header and returns uuid.Nil when it does not
// resolve to a user.
func (s *Server) resolveSocketIdentity(c *gin.Context) uuid.UUID {
	accessToken := c.Query("token")
	if accessToken == "" {
		accessToken = getTokenFromHeader(c)
	}
	if accessToken == "" {
		return uuid.Nil
	}

	if s.AuthRepository.IsTokenInBlacklist(accessToken) {
		return uuid.Nil
	}
	claims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
	if err != nil {
		return uuid.Nil
	}
	userID, err := jwt.UserIDFromClaims(claims)
	if err != nil {
		return uuid.Nil
	}
	if _, err := s.AuthRepository.FindUserByID(userID); err != nil {
		return uuid.Nil
	}
	return userID
}
