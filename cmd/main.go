package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"talkio/backend/internal/api/handler"
	"talkio/backend/internal/config"
	"talkio/backend/internal/models"
	"talkio/backend/internal/notify"
	"talkio/backend/internal/realtime"
	"talkio/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Call{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting Talkio realtime core...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	store := storage.NewService(db, rdb)

	var notifier realtime.MissedCallNotifier
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramService(cfg.TelegramToken, store)
		if err != nil {
			log.Printf("WARNING: Telegram notifier disabled: %v", err)
		} else {
			notifier = tg
		}
	}

	hub := realtime.NewHub(store, realtime.Options{Notifier: notifier})
	hub.StartPubSubListener()

	r := gin.Default()
	h := handler.NewHandler(hub, cfg.JWTSecret)

	// Routes
	r.GET("/token", h.GetToken)    // Connection JWT for local development
	r.GET("/ws", h.ServeWebSocket) // WebSocket upgrade

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
