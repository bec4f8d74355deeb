package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todoapp/internal/auth"
	"github.com/hitoshi/todoapp/internal/config"
	"github.com/hitoshi/todoapp/internal/database"
	"github.com/hitoshi/todoapp/internal/handler"
	"github.com/hitoshi/todoapp/internal/logger"
	"github.com/hitoshi/todoapp/internal/metrics"
	"github.com/hitoshi/todoapp/internal/middleware"
	"github.com/hitoshi/todoapp/internal/model"
	"github.com/hitoshi/todoapp/internal/repository"
	"github.com/hitoshi/todoapp/internal/security"
	"github.com/hitoshi/todoapp/internal/todo"
	"github.com/hitoshi/todoapp/internal/view"
	"github.com/hitoshi/todoapp/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("METRICS_PORT")
		if port == "" {
			port = "9090"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_backend", string(cfg.StoreBackend)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// stores はバックエンドに応じて生成したリポジトリを保持する。
// dbはpostgresバックエンドの場合のみ非nil。
type stores struct {
	todos    repository.TodoRepository
	sessions repository.SessionRepository
	db       *sql.DB
}

// Close はDB接続を閉じる。memoryバックエンドでは何もしない。
func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStores はSTORE_BACKENDに従ってToDoとセッションのリポジトリを生成する。
// postgresの場合は接続確認後に未適用のマイグレーションを適用する。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == config.StoreMemory {
		var seed []model.Todo
		if cfg.SeedDemoData {
			seed = repository.DemoTodos(time.Now())
		}
		slog.Info("using in-memory store", slog.Int("seed_todos", len(seed)))
		return &stores{
			todos:    repository.NewMemoryTodoRepo(seed...),
			sessions: repository.NewMemorySessionRepo(),
		}, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &stores{
		todos:    repository.NewPostgresTodoRepo(db, database.DriverName),
		sessions: repository.NewPostgresSessionRepo(db),
		db:       db,
	}, nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// buildRouter は全依存関係をワイヤリングしてアプリケーションのHTTPハンドラーを構築する。
// 返却するRateLimiterは呼び出し側でStopすること。
func buildRouter(cfg *config.Config, st *stores, collector metrics.MetricsCollector, bcryptCost int) (http.Handler, *middleware.RateLimiter, error) {
	// 1. 資格情報ストア
	seeds, err := auth.ParseUsers(cfg.Users)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid APP_USERS: %w", err)
	}
	credentials, err := auth.NewCredentialStore(seeds, bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build credential store: %w", err)
	}
	slog.Info("credential store ready", slog.Any("usernames", credentials.Usernames()))

	// 2. 画面テンプレート
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 3. ドメインサービス
	authService := auth.NewService(credentials, st.sessions, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	todoService := todo.NewService(st.todos, security.NewMarkupChecker(), todo.ServiceConfig{
		OwnerCheck: cfg.TodoOwnerCheck,
	})

	// 4. レート制限（設定値はreq/min）
	rateLimiterCfg := middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin)
	rateLimiterCfg.Render = handler.NewErrorRenderer(renderer)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	cookie := middleware.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         slog.Default(),
		Sessions:       authService,
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		CSRFProtection: cfg.CSRFProtection,

		Renderer: renderer,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			Cookie:        cookie,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		TodoService: todoService,
	})

	return router, rateLimiter, nil
}

// runServe はWebサーバーモードで起動する。
// アプリケーション用と運用（/metrics, /health）用の2つのHTTPサーバーを起動し、
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ストア
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ルーター
	router, rateLimiter, err := buildRouter(cfg, st, collector, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	defer rateLimiter.Stop()

	// 4. 期限切れセッションのクリーンアップ
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var wg sync.WaitGroup
	cleanupJob := cleanup.NewCleanupJob(st.sessions, collector, slog.Default())
	cleanupJob.Interval = cfg.SessionCleanupInterval
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupJob.Start(jobCtx)
	}()

	// 5. HTTPサーバー
	var health HealthChecker
	if st.db != nil {
		health = st.db
	}
	servers := []*http.Server{
		newServer(cfg.ServerPort, router),
		newServer(cfg.MetricsPort, metrics.SetupMetricsRoute(registry, NewHealthHandler(health))),
	}

	errCh := make(chan error, len(servers))
	for _, server := range servers {
		wg.Add(1)
		go func(server *http.Server) {
			defer wg.Done()
			slog.Info("HTTP server starting", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s listen error: %w", server.Addr, err)
			}
		}(server)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP servers...")
	case serveErr = <-errCh:
		slog.Error("HTTP server failed", slog.String("error", serveErr.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil && shutdownErr == nil {
			shutdownErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	cancelJob()
	wg.Wait()

	if shutdownErr != nil {
		return shutdownErr
	}
	if serveErr != nil {
		return serveErr
	}
	slog.Info("HTTP servers stopped gracefully")
	return nil
}

// newServer はタイムアウトを設定したhttp.Serverを生成する。
func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runWorker はワーカーモードで起動する。
// PostgreSQLの期限切れセッションをSESSION_CLEANUP_INTERVALごとに削除し、
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.StoreBackend != config.StorePostgres {
		return fmt.Errorf("worker requires STORE_BACKEND=postgres (got %q)", cfg.StoreBackend)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), nil, slog.Default())
	cleanupJob.Interval = cfg.SessionCleanupInterval

	cleanupJob.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	current, dirty, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration failed: schema version %d is dirty, fix it manually before migrating", current)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("current_version", uint64(current)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
