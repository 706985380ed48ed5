package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	errs "github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/server/response"
)

type startConversationRequest struct {
	ReceiverID string `json:"receiverId" binding:"required,uuid"`
	SubjectID  string `json:"subjectId" binding:"required,uuid"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid"`
	Content        string `json:"content" binding:"required"`
	ReceiverID     string `json:"receiverId" binding:"omitempty,uuid"`
}

func (s *Server) handleGetConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		conversations, err := s.MessageService.ListConversations(userID)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		response.JSON(c, "conversations retrieved", http.StatusOK, conversations, nil)
	}
}

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request startConversationRequest
		if err := decode(c, &request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		summary, err := s.MessageService.StartConversation(userID, uuid.MustParse(request.ReceiverID), uuid.MustParse(request.SubjectID))
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		response.JSON(c, "conversation ready", http.StatusOK, summary, nil)
	}
}

func (s *Server) handleGetConversationMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		conversationID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation id", http.StatusBadRequest))
			return
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		messages, err := s.MessageService.GetConversationMessages(conversationID, userID, limit, offset)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		// Opening the thread marked it read; let the counterpart's open
		// clients update their ticks.
		s.Hub.BroadcastRead(conversationID, userID)
		response.JSON(c, "messages retrieved", http.StatusOK, messages, nil)
	}
}

// handleSendMessage is the REST fallback for clients without a live socket.
// The stored message comes back in the response body so the sender can
// reconcile its optimistic copy.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request sendMessageRequest
		if err := decode(c, &request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, err)
			return
		}

		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		msg, err := s.MessageService.SendMessage(uuid.MustParse(request.ConversationID), userID, request.Content)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		receiverID := uuid.Nil
		if request.ReceiverID != "" {
			receiverID = uuid.MustParse(request.ReceiverID)
		}
		s.Hub.BroadcastMessage(msg, receiverID)

		response.JSON(c, "message sent", http.StatusCreated, msg, nil)
	}
}

func (s *Server) handleMarkConversationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}
		conversationID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation id", http.StatusBadRequest))
			return
		}

		marked, err := s.MessageService.MarkConversationRead(conversationID, userID)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		s.Hub.BroadcastRead(conversationID, userID)
		response.JSON(c, "conversation marked read", http.StatusOK, gin.H{"marked": marked}, nil)
	}
}

// handleGetUnreadCount returns the unread count for one conversation when
// conversationId is given, otherwise the user's total across conversations.
func (s *Server) handleGetUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := currentUserID(c)
		if err != nil {
			response.JSON(c, "", errs.Status(err), nil, err)
			return
		}

		var count int64
		if raw := c.Query("conversationId"); raw != "" {
			conversationID, err := uuid.Parse(raw)
			if err != nil {
				response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation id", http.StatusBadRequest))
				return
			}
			count, err = s.MessageService.UnreadCount(conversationID, userID)
			if err != nil {
				response.JSON(c, "", errs.Status(err), nil, err)
				return
			}
		} else {
			count, err = s.MessageService.UnreadTotal(userID)
			if err != nil {
				response.JSON(c, "", errs.Status(err), nil, err)
				return
			}
		}
		response.JSON(c, "unread count retrieved", http.StatusOK, gin.H{"count": count}, nil)
	}
}
