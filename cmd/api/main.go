package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourusername/bible-tournament-api/internal/config"
	"github.com/yourusername/bible-tournament-api/internal/domain/entity"
	"github.com/yourusername/bible-tournament-api/internal/handler"
	"github.com/yourusername/bible-tournament-api/internal/metrics"
	"github.com/yourusername/bible-tournament-api/internal/middleware"
	pgRepo "github.com/yourusername/bible-tournament-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/bible-tournament-api/internal/repository/redis"
	"github.com/yourusername/bible-tournament-api/internal/scheduler"
	"github.com/yourusername/bible-tournament-api/internal/service"
	ws "github.com/yourusername/bible-tournament-api/internal/websocket"
	"github.com/yourusername/bible-tournament-api/pkg/auth"
	"github.com/yourusername/bible-tournament-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Database.LogLevel)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}
	if err := database.MigrateDB(db, migrationsDir); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Репозитории
	tx := pgRepo.NewTransactor(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	logRepo := pgRepo.NewLifecycleLogRepo(db)
	tournamentRepo := pgRepo.NewTournamentConfigRepo(db)
	qualificationRepo := pgRepo.NewQualificationConfigRepo(db)
	bonusRequestRepo := pgRepo.NewBonusRequestRepo(db)
	practiceStatsRepo := pgRepo.NewPracticeStatsRepo(db)
	applicationRepo := pgRepo.NewApplicationRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Сервисы
	lifecycleService := service.NewLifecycleService(tx, questionRepo, logRepo, nil, &service.LifecycleConfig{
		MinimumQuestionsPerCategory: cfg.Engine.Lifecycle.MinimumQuestionsPerCategory,
		HealthWindowDays:            cfg.Engine.Lifecycle.HealthWindowDays,
	})
	questionService := service.NewQuestionService(tx, questionRepo, logRepo, lifecycleService)
	allocatorService := service.NewAllocatorService(tx, questionRepo, tournamentRepo, lifecycleService, nil, &service.AllocatorConfig{
		DefaultMinimumPerCategory: cfg.Engine.Lifecycle.MinimumQuestionsPerCategory,
		DefaultReleaseMode:        entity.PracticeReleaseMode(cfg.Engine.Allocator.DefaultReleaseMode),
		DefaultDelayHours:         cfg.Engine.Allocator.DefaultDelayHours,
	})
	bonusService := service.NewBonusService(
		tx, questionRepo, logRepo, bonusRequestRepo, practiceStatsRepo, tournamentRepo,
		cacheRepo, lifecycleService, nil, nil, cfg.Engine.BonusPipelineConfig(),
	)
	qualificationService := service.NewQualificationService(
		tx, questionRepo, applicationRepo, attemptRepo, qualificationRepo,
		cacheRepo, nil, cfg.Engine.QuizEngineConfig(),
	)

	// Уведомления рецензентов
	if cfg.Email.Enabled {
		notifier, err := service.NewResendReviewNotifier(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.ReviewerEmails)
		if err != nil {
			log.Printf("Failed to initialize review notifier: %v", err)
			os.Exit(1)
		}
		bonusService.SetReviewNotifier(notifier)
	} else {
		bonusService.SetReviewNotifier(&service.NoopReviewNotifier{})
	}

	// WebSocket хаб с рассылкой прогресса между узлами через Redis Pub/Sub
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	redisProvider, err := ws.NewRedisPubSub(redisClient)
	if err != nil {
		log.Printf("Ошибка при создании Redis PubSub провайдера: %v. Прогресс будет доставляться только локально.", err)
	} else {
		pubSubProvider = redisProvider
	}
	wsHub := ws.NewHub(pubSubProvider)
	if err := wsHub.Start(); err != nil {
		log.Printf("Failed to subscribe WebSocket hub: %v", err)
		os.Exit(1)
	}
	bonusService.SetProgressPublisher(wsHub)

	// Возобновляем задачи, прерванные перезапуском
	resumeCtx, resumeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if resumed, err := bonusService.ResumePending(resumeCtx); err != nil {
		log.Printf("Failed to resume bonus requests: %v", err)
	} else if resumed > 0 {
		log.Printf("Возобновлено бонусных запросов: %d", resumed)
	}
	resumeCancel()

	// Аутентификация
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Планировщик отложенного возврата в практику
	practiceScheduler, err := scheduler.NewPracticeReleaseScheduler(allocatorService, cfg.Cron.PracticeReleaseSpec)
	if err != nil {
		log.Printf("Failed to initialize scheduler: %v", err)
		os.Exit(1)
	}
	practiceScheduler.Start()

	router := gin.Default()

	// В production не доверяем прокси-заголовкам
	if gin.Mode() == gin.ReleaseMode {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(metrics.GinMiddleware())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps, healthy := database.CheckHealth(ctx, db, redisClient)
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "dependencies": deps})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router, handler.Handlers{
		Questions:     handler.NewQuestionHandler(questionService, lifecycleService),
		Tournaments:   handler.NewTournamentHandler(allocatorService, qualificationService),
		Bonus:         handler.NewBonusHandler(bonusService),
		Qualification: handler.NewQualificationHandler(qualificationService),
		WS:            handler.NewWSHandler(wsHub, bonusService, cfg.Server.AllowedOrigins),
	}, authMiddleware, rateLimiter)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	practiceScheduler.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Незавершенные бонусные задачи возобновятся при следующем запуске
	bonusService.Shutdown()
	wsHub.Stop()

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}
