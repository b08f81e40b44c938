package main

import (
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"github.com/walletgate/walletgate/adapters/cookies"
	"github.com/walletgate/walletgate/adapters/events"
	"github.com/walletgate/walletgate/adapters/store"
	"github.com/walletgate/walletgate/ports"
	"github.com/walletgate/walletgate/service"
	"github.com/walletgate/walletgate/transport/http"
)

func main() {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("SESSION_SECRET must be set")
	}

	secure := os.Getenv("ENVIRONMENT") == "production"

	logger := watermill.NewStdLogger(false, false)

	var users ports.UserStore
	var publisher message.Publisher

	// With Redis configured, user records and auth events are shared
	// across instances; without it everything stays in-process.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}

		redisClient := redis.NewClient(opts)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}

		users = store.NewRedisStore(redisClient)
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
		users = store.NewEchoStore()
	}

	codec := cookies.NewJWTCodec([]byte(secret))
	eventPub := events.NewWatermillPublisher(publisher)

	authService := service.NewAuthService(codec, users, eventPub)

	// Setup Gin router
	router := http.SetupRouter(authService, secure)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Start server
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
