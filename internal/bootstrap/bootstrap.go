package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/batchswap/batchswap/internal/app/controllers"
	appMigrations "github.com/batchswap/batchswap/internal/app/migrations"
	appRepos "github.com/batchswap/batchswap/internal/app/repositories"
	appRoutes "github.com/batchswap/batchswap/internal/app/routes"
	appServices "github.com/batchswap/batchswap/internal/app/services"
	"github.com/batchswap/batchswap/internal/config"
	"github.com/batchswap/batchswap/internal/db"
	appMiddleware "github.com/batchswap/batchswap/internal/middleware"
	pkgAuth "github.com/batchswap/batchswap/internal/pkg/auth"
	"github.com/batchswap/batchswap/internal/pkg/helpers"
	"github.com/batchswap/batchswap/internal/pkg/logger"
	"github.com/batchswap/batchswap/internal/pkg/websocket"
	"github.com/batchswap/batchswap/internal/seed"
)

// expirySweepInterval is how often the expiry worker scans for stale
// pending requests.
const expirySweepInterval = time.Minute

// Dependencies holds all the application dependencies
type Dependencies struct {
	AuthService       *appServices.AuthService
	StudentService    *appServices.StudentService
	SwapService       *appServices.SwapService
	ChatService       *appServices.ChatService
	AuthController    *appControllers.AuthController
	StudentController *appControllers.StudentController
	SwapController    *appControllers.SwapController
	ChatController    *appControllers.ChatController
	WSHandler         *websocket.Handler
	Hub               *websocket.Hub
	ExpiryWorker      *appServices.ExpiryWorker
	AuthMiddleware    *appMiddleware.AuthMiddleware
	Repos             *appRepos.Repositories
	JWTService        *pkgAuth.JWTService
	Logger            zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbPool.Ping(ctx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		dbPool.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	if err := migrator.MigrateFromDirectory(migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}

	lgr.Info().Msg("Database migrations successfully applied.")

	if err := seed.CreateDefaultData(context.Background(), dbPool, lgr); err != nil {
		// Demo data is a convenience; a failure should not block startup
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return database, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database.Pool)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	deps.Hub = websocket.NewHub(lgr)

	deps.AuthService = appServices.NewAuthService(
		deps.Repos.StudentRepository,
		deps.JWTService,
		lgr,
	)
	deps.StudentService = appServices.NewStudentService(
		deps.Repos.StudentRepository,
		cfg.Swap.Tolerance,
		lgr,
	)
	deps.ChatService = appServices.NewChatService(
		deps.Repos.ChatMessageRepository,
		deps.Repos.SwapRequestRepository,
		deps.Hub,
		database,
		lgr,
	)
	deps.SwapService = appServices.NewSwapService(
		deps.Repos.StudentRepository,
		deps.Repos.SwapRequestRepository,
		deps.StudentService,
		database,
		deps.ChatService,
		cfg.RequestExpiryDuration(),
		lgr,
	)

	if cfg.RequestExpiryDuration() > 0 {
		deps.ExpiryWorker = appServices.NewExpiryWorker(deps.SwapService, expirySweepInterval, lgr)
	}

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	deps.StudentController = appControllers.NewStudentController(deps.StudentService, lgr)
	deps.SwapController = appControllers.NewSwapController(deps.SwapService, lgr)
	deps.ChatController = appControllers.NewChatController(deps.ChatService, lgr)
	deps.WSHandler = websocket.NewHandler(deps.Hub, deps.ChatService, deps.ChatService, lgr)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(appMiddleware.RequestLogger(lgr))
	router.Use(gin.Recovery())

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.StudentController,
		deps.SwapController,
		deps.ChatController,
		deps.WSHandler,
		deps.AuthMiddleware,
	)

	// Health endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
