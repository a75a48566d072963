package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notebook-reservation/internal/config"
	"github.com/iliyamo/notebook-reservation/internal/database"
	"github.com/iliyamo/notebook-reservation/internal/handler"
	"github.com/iliyamo/notebook-reservation/internal/middleware"
	"github.com/iliyamo/notebook-reservation/internal/queue"
	"github.com/iliyamo/notebook-reservation/internal/repository"
	"github.com/iliyamo/notebook-reservation/internal/router"
	"github.com/iliyamo/notebook-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb == nil {
		log.Println("redis unavailable; cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	notebooks := repository.NewNotebookRepo(db)
	reservations := repository.NewReservationRepo(db)

	booking := service.NewBookingService(notebooks, reservations, queue.NewRecorder())

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterNotebooks(e, handler.NewNotebookHandler(notebooks, booking), cfg.JWTSecret, cache)
	router.RegisterReservations(e, handler.NewReservationHandler(booking), cfg.JWTSecret)

	// The consumer appends reservation history events to the audit log;
	// it reconnects on its own and never takes the server down.
	go func() {
		if err := queue.StartHistoryConsumer(); err != nil {
			log.Printf("history consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
