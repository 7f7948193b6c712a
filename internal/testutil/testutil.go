package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/healthguide/internal/api"
	"github.com/dom/healthguide/internal/chat"
	"github.com/dom/healthguide/internal/config"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/otp"
	"github.com/dom/healthguide/internal/repository"
	repoPostgres "github.com/dom/healthguide/internal/repository/postgres"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/token"
	"github.com/dom/healthguide/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_healthguide"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(testDB.Cleanup)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	testDB.DSN = dsn

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	testDB.DB = db

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range []string{"users"} {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	cfg := &config.Config{
		Port:          "0",
		Environment:   "test",
		JWTSecret:     "test-jwt-secret-key-for-testing-only",
		JWTExpiration: time.Hour,
	}
	cfg.OTP.TTL = otp.DefaultTTL
	cfg.OTP.Window = 10 * time.Minute
	cfg.Chat.SessionTTL = time.Hour
	cfg.Chat.MaxSessions = 100
	cfg.Chat.MaxTurns = 20
	cfg.Chat.RatePerSecond = 1000
	cfg.Chat.RateBurst = 1000
	return cfg
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *websocket.Hub
	Registry *chat.Registry
	Sender   *CapturingSender
	Model    *StubModel
	Photos   *MemoryPhotoStore
	Tokens   *token.Manager
	Config   *config.Config
}

// NewTestServer creates a complete test server backed by a PostgreSQL container
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	ts := newTestServer(t, repoPostgres.NewRepositories(testDB.DB))
	ts.DB = testDB
	return ts
}

// NewMemoryTestServer creates a complete test server backed by an in-memory user store
func NewMemoryTestServer(t *testing.T) *TestServer {
	t.Helper()
	return newTestServer(t, &repository.Repositories{User: NewMemoryUserRepository()})
}

func newTestServer(t *testing.T, repos *repository.Repositories) *TestServer {
	t.Helper()

	cfg := TestConfig()
	log := logger.Nop()

	sender := NewCapturingSender()
	model := NewStubModel()
	photos := NewMemoryPhotoStore()
	tokens := token.NewManager(cfg.JWTSecret, cfg.JWTExpiration)
	registry := chat.NewRegistry(chat.Options{
		MaxSessions: cfg.Chat.MaxSessions,
		MaxTurns:    cfg.Chat.MaxTurns,
		TTL:         cfg.Chat.SessionTTL,
	})

	services := service.NewServices(service.Deps{
		Repos:      repos,
		Challenges: otp.NewGenerator(cfg.OTP.TTL),
		Sender:     sender,
		Tokens:     tokens,
		Registry:   registry,
		Model:      model,
		Photos:     photos,
		Log:        log,
	})
	services.Auth.WithBcryptCost(MinBcryptCost)

	hub := websocket.NewHub(log)
	go hub.Run()

	router := api.NewRouter(services, hub, cfg, log)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})

	return &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Registry: registry,
		Sender:   sender,
		Model:    model,
		Photos:   photos,
		Tokens:   tokens,
		Config:   cfg,
	}
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.Server.URL, path)
}

// WebSocketURL returns the chat WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http")
	return fmt.Sprintf("%s/api/chatbot/ws?token=%s", wsURL, token)
}
