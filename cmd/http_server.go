package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"snapexpense/internal"
	expenseDatamodel "snapexpense/internal/core/datamodel/expense"
	userDatamodel "snapexpense/internal/core/datamodel/user"
	"snapexpense/internal/expense"
	"snapexpense/internal/extraction"
	"snapexpense/internal/session"
	"snapexpense/internal/snapshot"
	"snapexpense/internal/store"
	"snapexpense/internal/store/local"
	mongostore "snapexpense/internal/store/mongo"
	"snapexpense/internal/transport/rest"
	"snapexpense/internal/user"
	"snapexpense/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	Snapshots *snapshot.Store
	Mongo     *mongostore.Store
	Router    *chi.Mux
	Logger    *slog.Logger

	ExpenseRepo *expense.Repository
	UserRepo    *user.Repository
	Sessions    *session.Manager

	cancelSubscriptions context.CancelFunc
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		shutdownDependencies(deps)
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			shutdownDependencies(deps)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

func shutdownDependencies(deps *Dependencies) {
	deps.ExpenseRepo.Close()
	deps.UserRepo.Close()
	deps.cancelSubscriptions()
	if deps.Mongo != nil {
		if err := deps.Mongo.Close(); err != nil {
			deps.Logger.Error("Mongo close error", "error", err)
		}
	}
	if err := deps.Snapshots.Close(); err != nil {
		deps.Logger.Error("Snapshot store close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Format, config.Logging.Level)
	lg := logger.LoggerWrapper()

	snapshots, err := snapshot.Open(config.LocalStore.Path, config.LocalStore.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	// Local collections exist in both modes: they are the primary store in
	// local mode and the failover target in cloud mode.
	localExpenses := local.NewCollection(snapshots, expense.SnapshotKey,
		func(e expenseDatamodel.Expense) string { return e.ID },
		local.WithStripper(expense.StripImage),
		local.WithLogger[expenseDatamodel.Expense](lg))
	localUsers := local.NewCollection(snapshots, user.SnapshotKey,
		func(u userDatamodel.User) string { return u.ID },
		local.WithSeed(user.SeedUsers(config.Security.BCryptCost)),
		local.WithLogger[userDatamodel.User](lg))

	var (
		expenseCol store.Collection[expenseDatamodel.Expense] = localExpenses
		userCol    store.Collection[userDatamodel.User]       = localUsers
		mongoStore *mongostore.Store
		demoted    func() bool
	)

	if config.Store.CloudMode() {
		mongoStore, err = mongostore.NewStore(config.Store.MongoURI, config.Store.Database, config.Store.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to cloud store: %w", err)
		}

		expenseFailover := store.NewFailover[expenseDatamodel.Expense](
			mongostore.NewCollection[expenseDatamodel.Expense](mongoStore, expense.CollectionName, lg),
			localExpenses, lg)
		userFailover := store.NewFailover[userDatamodel.User](
			mongostore.NewCollection[userDatamodel.User](mongoStore, user.CollectionName, lg),
			localUsers, lg)

		expenseCol = expenseFailover
		userCol = userFailover
		demoted = func() bool { return expenseFailover.Demoted() || userFailover.Demoted() }
	}

	subCtx, cancelSubs := context.WithCancel(context.Background())

	expenseRepo, err := expense.NewRepository(subCtx, expenseCol, lg)
	if err != nil {
		cancelSubs()
		return nil, fmt.Errorf("failed to start expense repository: %w", err)
	}

	userRepo, err := user.NewRepository(subCtx, userCol, expenseRepo, config.Security.BCryptCost, lg)
	if err != nil {
		cancelSubs()
		return nil, fmt.Errorf("failed to start user repository: %w", err)
	}

	tokens := session.NewTokenGenerator(config.Security.JWTSecret, config.Security.AccessTokenDuration)
	sessions := session.NewManager(userRepo, snapshots, tokens, lg)
	userRepo.SetSessionTerminator(sessions)

	extractor := extraction.NewClient(config.Extraction.APIURL, config.Extraction.APIKey, config.Extraction.Timeout, lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.RouterDeps{
		Snapshots:      snapshots,
		CloudMode:      config.Store.CloudMode(),
		Demoted:        demoted,
		AllowedOrigins: config.Server.AllowedOrigins,

		SessionHandler:    session.NewHandler(sessions),
		SessionManager:    sessions,
		UserHandler:       user.NewHandler(userRepo),
		ExpenseHandler:    expense.NewHandler(expenseRepo),
		ExtractionHandler: extraction.NewHandler(extractor),

		Logger: lg,
	})

	return &Dependencies{
		Config:    config,
		Snapshots: snapshots,
		Mongo:     mongoStore,
		Router:    router,
		Logger:    lg,

		ExpenseRepo: expenseRepo,
		UserRepo:    userRepo,
		Sessions:    sessions,

		cancelSubscriptions: cancelSubs,
	}, nil
}
