package services

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/shashank8536/Campus-MarketPlace/models"
)

// Notifier pushes a new-message alert to a recipient's registered device.
// The realtime gateway uses it when the recipient has no live connection.
type Notifier interface {
	NotifyNewMessage(recipient *models.User, msg *models.Message) error
}

type NotificationService struct {
	messagingClient *messaging.Client
}

// NewNotificationService initializes Firebase Cloud Messaging from a service
// account credentials file.
func NewNotificationService(ctx context.Context, credentialsFile string) (*NotificationService, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %v", err)
	}
	log.Println("Firebase Messaging client initialized")

	return &NotificationService{messagingClient: client}, nil
}

func (s *NotificationService) NotifyNewMessage(recipient *models.User, msg *models.Message) error {
	if recipient.DeviceToken == "" {
		return nil
	}

	message := &messaging.Message{
		Token: recipient.DeviceToken,
		Notification: &messaging.Notification{
			Title: "New message from " + msg.Sender.Name,
			Body:  msg.Content,
		},
		Data: map[string]string{
			"conversationId": msg.ConversationID.String(),
		},
	}

	_, err := s.messagingClient.Send(context.Background(), message)
	if err != nil {
		log.Println("Error sending push notification:", err)
		return err
	}
	return nil
}
