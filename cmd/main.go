package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	httpapi "github.com/seojin-dev/stageline/internal/api/http"
	"github.com/seojin-dev/stageline/internal/config"
	"github.com/seojin-dev/stageline/internal/presence"
	"github.com/seojin-dev/stageline/internal/repository"
	"github.com/seojin-dev/stageline/internal/repository/model"
	"github.com/seojin-dev/stageline/internal/service"
	"github.com/seojin-dev/stageline/lib/logger/sl"
	"github.com/seojin-dev/stageline/lib/logger/slogpretty"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	var (
		roomRepo   repository.RoomRepository
		memberRepo repository.MembershipRepository
		userRepo   repository.UserRepository
		followRepo repository.FollowRepository
	)

	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", sl.Err(err))
			os.Exit(1)
		}
		roomRepo = repository.NewPostgresRoomRepository(db)
		memberRepo = repository.NewPostgresMembershipRepository(db)
		userRepo = repository.NewPostgresUserRepository(db)
		followRepo = repository.NewPostgresFollowRepository(db)
	} else {
		log.Warn("no database dsn configured, using in-memory storage")
		users := repository.NewInMemoryUserRepository()
		roomRepo = repository.NewInMemoryRoomRepository()
		memberRepo = repository.NewInMemoryMembershipRepository(users)
		userRepo = users
		followRepo = repository.NewInMemoryFollowRepository(users)
	}

	var presenceStore service.PresenceTracker
	if store, err := presence.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		// Presence is an auxiliary view; the relay works without it.
		log.Warn("redis unavailable, presence tracking disabled", sl.Err(err))
	} else {
		presenceStore = store
	}

	scoreService := service.NewScoreService(memberRepo, log)
	roomService := service.NewRoomService(roomRepo, memberRepo, userRepo, scoreService, presenceStore, log)
	userService := service.NewUserService(userRepo, log)
	followService := service.NewFollowService(followRepo, userRepo, log)

	roomController := httpapi.NewRoomController(roomService, scoreService, userService, log)
	userController := httpapi.NewUserController(userService)
	followController := httpapi.NewFollowController(followService)

	router := httpapi.SetupRouter(roomController, userController, followController, cfg.HTTP.AllowedOrigins, cfg.Auth.JWTSecret)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.Room{}, &model.RoomUser{}, &model.User{}, &model.ChatMessage{}, &model.Follow{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
