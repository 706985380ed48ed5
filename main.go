package main

import (
	"context"
	"log"

	"github.com/shashank8536/Campus-MarketPlace/config"
	"github.com/shashank8536/Campus-MarketPlace/db"
	"github.com/shashank8536/Campus-MarketPlace/realtime"
	"github.com/shashank8536/Campus-MarketPlace/server"
	"github.com/shashank8536/Campus-MarketPlace/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)
	authRepo := db.NewAuthRepo(gormDB)
	listingRepo := db.NewListingRepo(gormDB)
	convRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)

	authService := services.NewAuthService(authRepo, conf)
	messageService := services.NewMessageService(convRepo, messageRepo, authRepo, listingRepo, conf)

	// Push is optional; without credentials the gateway simply skips offline
	// notification.
	var notifier services.Notifier
	if conf.GoogleApplicationCredentials != "" {
		notificationService, err := services.NewNotificationService(context.Background(), conf.GoogleApplicationCredentials)
		if err != nil {
			log.Fatalf("error initializing push notifications: %v", err)
		}
		notifier = notificationService
	}

	hub := realtime.NewHub(messageService, authRepo, notifier)

	s := &server.Server{
		Config:         conf,
		AuthRepository: authRepo,
		AuthService:    authService,
		MessageService: messageService,
		Hub:            hub,
		DB:             *gormDB,
	}
	s.Start()
}
