package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"teleconsult-backend/internal/coordinator"
	"teleconsult-backend/internal/database"
	consultHandler "teleconsult-backend/internal/handler/http/consult"
	wsHandler "teleconsult-backend/internal/handler/ws"
	"teleconsult-backend/internal/middleware"
	cassandraRepo "teleconsult-backend/internal/repository/cassandra"
	"teleconsult-backend/internal/repository/cockroach"
	redisRepo "teleconsult-backend/internal/repository/redis"
	consultService "teleconsult-backend/internal/service/consult"
	"teleconsult-backend/pkg/env"
	"teleconsult-backend/pkg/jwt"
	"teleconsult-backend/pkg/logger"
	"teleconsult-backend/pkg/metrics"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Structured logging
	if err := logger.Init(&logger.Config{
		Level:  env.GetString("LOG_LEVEL", "info"),
		Format: env.GetString("LOG_FORMAT", "json"),
		Output: "stdout",
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 2. JWT Manager
	jwtSecret := env.GetStringFromFile("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be at least 32 characters")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	// 3. CockroachDB for consultation records, with exponential backoff retry
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		env.GetString("DB_USER", "root"),
		url.QueryEscape(env.GetStringFromFile("DB_PASSWORD", "")),
		env.GetString("DB_HOST", "localhost"),
		env.GetInt("DB_PORT", 26257),
		env.GetString("DB_NAME", "teleconsult"),
		env.GetString("DB_SSL_MODE", "disable"),
	)

	var db *database.DB
	var err error

	maxRetries := 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	db, err = database.NewDB(ctx, connString, nil)
	for attempt := 2; err != nil && attempt <= maxRetries; attempt++ {
		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		log.Printf("⚠️  CockroachDB connection attempt %d failed: %v. Retrying in %v...", attempt, err, delay)
		time.Sleep(delay)
		db, err = database.NewDB(ctx, connString, nil)
	}
	if err != nil {
		log.Fatalf("Failed to connect to CockroachDB after %d attempts: %v", maxRetries, err)
	}
	defer db.Close()
	log.Println("✅ Connected to CockroachDB")

	// 4. Cassandra for chat transcripts
	cassandra, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    strings.Split(env.GetString("CASSANDRA_HOSTS", "localhost"), ","),
		Keyspace: env.GetString("CASSANDRA_KEYSPACE", "teleconsult"),
		Username: env.GetString("CASSANDRA_USER", ""),
		Password: env.GetStringFromFile("CASSANDRA_PASSWORD", ""),
		Timeout:  5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Cassandra: %v", err)
	}
	defer cassandra.Close()
	log.Println("✅ Connected to Cassandra")

	// 5. Redis with degraded mode support
	database.InitRedisMetrics()
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     env.GetString("REDIS_HOST", "localhost"),
		Port:     env.GetInt("REDIS_PORT", 6379),
		Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
	} else {
		log.Println("✅ Connected to Redis")
	}
	defer redisDB.Close()
	redisDB.StartHealthCheck(ctx, 10*time.Second)

	// 6. Repositories and consult service
	consultationRepo := cockroach.NewConsultationRepository(db.Pool)
	chatRepo := cassandraRepo.NewChatArchiveRepository(cassandra.Session)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB)
	consultSvc := consultService.NewService(consultationRepo, chatRepo, presenceRepo)

	// 7. Metrics
	appMetrics := metrics.NewMetrics("call-service")
	callMetrics := metrics.NewCallMetrics("call-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 8. Call hub and session registry
	hub := wsHandler.NewCallHub(consultSvc, appMetrics)
	registry := coordinator.NewRegistry(coordinator.Config{}, hub, consultSvc, callMetrics)
	hub.BindRegistry(registry)
	registry.StartJanitor(ctx)

	// 9. Handlers
	consultHdlr := consultHandler.NewHandler(registry, consultSvc)

	// 10. Gin router
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "call-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	revocationChecker := middleware.NewRedisRevocationChecker(redisDB)
	connectLimiter := middleware.NewRateLimiter(redisDB,
		env.GetInt("CONNECT_RATE_LIMIT", 30), time.Minute)

	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtManager, revocationChecker))
	{
		v1.GET("/consultations/:id/call", consultHdlr.GetCallStatus)
		v1.GET("/sessions/stats", consultHdlr.GetSessionCounts)

		// WebSocket endpoint: one connection per participant per consultation
		v1.GET("/calls/ws", connectLimiter.Middleware(), hub.ServeWS)
	}

	// 11. Start server
	port := env.GetString("PORT", "8084")
	addr := fmt.Sprintf(":%s", port)

	log.Printf("🚀 Call Service starting on port %s\n", port)
	log.Println("📡 Call signaling: /v1/calls/ws")
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
