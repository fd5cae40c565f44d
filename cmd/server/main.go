package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"geminijoust/config"
	"geminijoust/controllers"
	"geminijoust/db"
	"geminijoust/middlewares"
	"geminijoust/notifier"
	"geminijoust/services"
	"geminijoust/utils"
	"geminijoust/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, cfg.Database.URI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB")

	// Seed starter topics on first boot
	utils.SeedTopics(store)

	// Redis bridges change events between server instances. Without it the
	// notifier still works, but only for subscribers on this instance.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, notifications stay in-process: %v", err)
			rdb = nil
		}
	}

	hub := notifier.NewHub(store, rdb)
	go hub.Run(ctx)

	gemini := services.NewGeminiClient(cfg.Gemini.ApiKey, cfg.Gemini.Model, cfg.Gemini.Endpoint)
	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
	moderation := services.NewModerationService(store, gemini, hub, timeout)
	matchmaking := services.NewMatchmakingService(store, hub)
	debates := services.NewDebateService(store, hub, moderation)

	router := setupRouter(store, hub, matchmaking, debates)
	port := strconv.Itoa(cfg.Server.Port)
	log.Printf("Server starting on port %s", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRouter(store *db.Store, hub *notifier.Hub, matchmaking *services.MatchmakingService, debates *services.DebateService) *gin.Engine {
	router := gin.Default()

	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	router.OPTIONS("/*path", func(c *gin.Context) { c.Status(204) })

	topicCtrl := controllers.NewTopicController(store, matchmaking)
	debateCtrl := controllers.NewDebateController(store, debates)
	wsHandler := websocket.NewHandler(hub)

	api := router.Group("/")
	api.Use(middlewares.RequireUser())
	{
		api.POST("/topics", topicCtrl.CreateTopic)
		api.GET("/topics", topicCtrl.ListTopics)
		api.GET("/topics/:id", topicCtrl.GetTopic)
		api.POST("/topics/:id/interest", topicCtrl.SignalInterest)

		api.GET("/sessions", debateCtrl.ListSessions)
		api.GET("/sessions/:id", debateCtrl.GetSession)
		api.GET("/sessions/:id/messages", debateCtrl.ListMessages)
		api.POST("/sessions/:id/messages", debateCtrl.SubmitMessage)
		api.POST("/sessions/:id/exit", debateCtrl.Exit)
	}

	// Snapshot push endpoint; identity is carried in the query string since
	// browsers cannot set headers on WebSocket upgrades.
	router.GET("/ws", wsHandler.Serve)

	return router
}
