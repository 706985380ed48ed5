package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	errs "github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/models"
	"github.com/shashank8536/Campus-MarketPlace/server/response"
)

func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var loginRequest models.LoginRequest
		if err := decode(c, &loginRequest); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		userResponse, err := s.AuthService.Login(&loginRequest)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		response.JSON(c, "login successful", http.StatusOK, userResponse, nil)
	}
}

func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := c.GetString("access_token")
		email := c.GetString("email")

		if err := s.AuthService.Logout(accessToken, email); err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		response.JSON(c, "logout successful", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleGetOnlineUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		count := s.Hub.OnlineUserCount()
		response.JSON(c, "online users retrieved", http.StatusOK, gin.H{"count": count}, nil)
	}
}

func (s *Server) handleRegisterDeviceToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.DeviceTokenRequest
		if err := decode(c, &request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		if err := s.AuthService.RegisterDeviceToken(userID, request.DeviceToken); err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		response.JSON(c, "device token registered", http.StatusOK, nil, nil)
	}
}

// decode binds and validates a JSON request body.
func decode(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errs.New("invalid request body", http.StatusBadRequest)
	}
	return nil
}

// currentUserID reads the authenticated user id set by Authorize.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, errs.New("Unauthorized", http.StatusUnauthorized)
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, errs.New("Invalid userID format", http.StatusBadRequest)
	}
	return userID, nil
}
