package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-glsync/internal/common/api"
	"go-glsync/internal/config"
	"go-glsync/internal/database"
	"go-glsync/internal/features/audit"
	"go-glsync/internal/features/connection"
	"go-glsync/internal/features/mapping"
	"go-glsync/internal/features/sync"
	"go-glsync/internal/features/syncerror"
	"go-glsync/internal/features/system"
	"go-glsync/internal/features/tables"
	"go-glsync/internal/glsync"
	"go-glsync/internal/logger"
	"go-glsync/internal/middleware"
	"go-glsync/internal/realtime"
	"go-glsync/pkg/utils"

	_ "go-glsync/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(
	lc fx.Lifecycle,
	connectionRepo connection.ConnectionRepository,
	mappingRepo mapping.MappingRepository,
	syncLogRepo sync.SyncLogRepository,
	syncErrorRepo syncerror.SyncErrorRepository,
	log *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				repos := map[string]interface {
					EnsureIndexes(ctx context.Context) error
				}{
					database.ConnectionsCollection: connectionRepo,
					database.MappingsCollection:    mappingRepo,
					database.SyncLogsCollection:    syncLogRepo,
					database.SyncErrorsCollection:  syncErrorRepo,
				}
				for name, repo := range repos {
					if err := repo.EnsureIndexes(ctx); err != nil {
						log.Error("failed to ensure indexes", zap.String("collection", name), zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

// StartScheduler runs scheduled syncs and edit-session sweeping
func StartScheduler(lc fx.Lifecycle, scheduler sync.SchedulerService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop()
		},
	})
}

// RegisterChangeDecoders makes change-stream rows match what the services publish
func RegisterChangeDecoders(feeder *realtime.ChangeStreamFeeder) {
	feeder.Register(database.ConnectionsCollection, connection.ChangeRow)
	feeder.Register(database.MappingsCollection, mapping.ChangeRow)
	feeder.Register(database.SyncLogsCollection, sync.ChangeRow)
	feeder.Register(database.SyncErrorsCollection, syncerror.ChangeRow)
}

// @title           glsync API
// @version         1.0
// @description     Manages Glide to Supabase table synchronization.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Databases
			database.NewDatabase,
			database.NewPostgres,

			// Realtime fan-out and the remote sync function
			realtime.NewHub,
			realtime.NewChangeStreamFeeder,
			realtime.NewPublisher,
			glsync.NewClient,
			func(cfg *config.Config) *mapping.SessionStore {
				return mapping.NewSessionStore(cfg.EditSessionTTL)
			},

			// Initialize Repository
			audit.NewAuditRepository,
			connection.NewConnectionRepository,
			mapping.NewMappingRepository,
			tables.NewCatalog,
			sync.NewSyncLogRepository,
			syncerror.NewSyncErrorRepository,

			audit.NewAuditService,
			connection.NewConnectionService,
			mapping.NewMappingService,
			tables.NewTableService,
			syncerror.NewSyncErrorService,
			sync.NewTrackerService,
			sync.NewExecutorService,
			sync.NewSchedulerService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(r mapping.MappingRepository) connection.MappingStore { return r },
			func(s tables.TableService) mapping.TableChecker { return s },
			func(s syncerror.SyncErrorService) sync.ErrorCounter { return s },
			func(s syncerror.SyncErrorService) sync.ErrorRecorder { return s },

			// Initialize Controller
			audit.NewAuditController,
			connection.NewConnectionController,
			mapping.NewMappingController,
			tables.NewTableController,
			syncerror.NewSyncErrorController,
			sync.NewSyncController,
			system.NewDebugController,
			system.NewRealtimeController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(connection.NewConnectionApi),
			AsRoute(mapping.NewMappingApi),
			AsRoute(tables.NewTableApi),
			AsRoute(syncerror.NewSyncErrorApi),
			AsRoute(sync.NewSyncApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewRealtimeApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartScheduler,
			RegisterChangeDecoders,
			InitializeIndexes,
		),
	)

	app.Run()
}
