package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	attachmentHTTP "github.com/allisson/attachments/internal/attachment/http"
	attachmentMocks "github.com/allisson/attachments/internal/attachment/usecase/mocks"
	"github.com/allisson/attachments/internal/config"
	keyvaultDomain "github.com/allisson/attachments/internal/keyvault/domain"
	keyvaultHTTP "github.com/allisson/attachments/internal/keyvault/http"
	keyvaultMocks "github.com/allisson/attachments/internal/keyvault/usecase/mocks"
	"github.com/allisson/attachments/internal/metrics"
	"github.com/allisson/attachments/internal/testutil"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestServer() *Server {
	return NewServer(nil, "localhost", 0, discardLogger())
}

type routerFixture struct {
	server      *Server
	attachments *attachmentMocks.MockAttachmentUseCase
	keyVault    *keyvaultMocks.MockKeyVaultUseCase
}

func newRouterFixture(t *testing.T, cfg *config.Config) *routerFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	attachments := &attachmentMocks.MockAttachmentUseCase{}
	keyVault := &keyvaultMocks.MockKeyVaultUseCase{}
	t.Cleanup(func() {
		attachments.AssertExpectations(t)
		keyVault.AssertExpectations(t)
	})

	logger := discardLogger()
	server := createTestServer()
	server.SetupRouter(
		ctx,
		cfg,
		attachmentHTTP.NewAttachmentHandler(attachments, logger),
		keyvaultHTTP.NewServerKeyHandler(keyVault, logger),
		nil,
	)

	return &routerFixture{server: server, attachments: attachments, keyVault: keyVault}
}

func (f *routerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	f.server.GetHandler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Run("not ready without database", func(t *testing.T) {
		server := createTestServer()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"not_ready","components":{"database":"error"}}`, w.Body.String())
	})

	t.Run("ready with database", func(t *testing.T) {
		db := testutil.SetupSQLiteDB(t)
		defer testutil.TeardownDB(t, db)
		server := NewServer(db, "localhost", 0, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","components":{"database":"ok"}}`, w.Body.String())
	})

	t.Run("not ready after database is closed", func(t *testing.T) {
		db := testutil.SetupSQLiteDB(t)
		require.NoError(t, db.Close())
		server := NewServer(db, "localhost", 0, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCustomLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))
	router.POST("/v1/attachments/encrypt", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_input"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/attachments/encrypt", strings.NewReader(`{"file":"c2VjcmV0"}`))
	router.ServeHTTP(w, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/v1/attachments/encrypt", line["path"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, line["status"])
	assert.Equal(t, w.Header().Get("X-Request-Id"), line["request_id"])
	assert.NotContains(t, buf.String(), "c2VjcmV0")
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBodyLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(BodyLimitMiddleware(16))
	router.POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
			return
		}
		c.Data(http.StatusOK, "text/plain", body)
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("small")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "small", w.Body.String())
	})

	t.Run("declared length over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 17))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 32)))
		req.ContentLength = -1
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := gin.New()
	router.Use(RateLimitMiddleware(ctx, 0.001, 2, discardLogger()))
	router.GET("/limited", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = ip + ":1234"
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)

	limited := request("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, request("10.0.0.2").Code, "limits are per client address")
}

func TestRateLimiterStore_RemoveIdle(t *testing.T) {
	store := &rateLimiterStore{rps: 1, burst: 1}
	now := time.Now()

	store.getLimiter("10.0.0.1", now.Add(-2*time.Hour))
	store.getLimiter("10.0.0.2", now)

	assert.Equal(t, 1, store.removeIdle(now.Add(-time.Hour)))
	_, ok := store.limiters.Load("10.0.0.2")
	assert.True(t, ok)
	_, ok = store.limiters.Load("10.0.0.1")
	assert.False(t, ok)
}

func TestSetupRouter(t *testing.T) {
	cfg := &config.Config{HTTPMaxBodySize: 1 << 20, MetricsNamespace: "test"}

	t.Run("health", func(t *testing.T) {
		f := newRouterFixture(t, cfg)
		w := f.do(http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	})

	t.Run("verify hmac route", func(t *testing.T) {
		f := newRouterFixture(t, cfg)
		f.attachments.On("VerifyHMAC", mock.Anything, []byte("sealed"), "key", "mac").Return(true).Once()

		w := f.do(http.MethodPost, "/v1/attachments/verify-hmac",
			`{"encrypted_buffer":"c2VhbGVk","encryption_key":"key","hmac":"mac"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"valid":true}`, w.Body.String())
	})

	t.Run("server key stats route wins over id route", func(t *testing.T) {
		f := newRouterFixture(t, cfg)
		f.keyVault.On("Stats").Return(keyvaultDomain.Stats{CacheSize: 2, CacheCapacity: 10, CacheTTL: time.Hour}).Once()

		w := f.do(http.MethodGet, "/v1/server-keys/stats", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"cache_size":2,"cache_capacity":10,"cache_ttl_seconds":3600}`, w.Body.String())
	})

	t.Run("body limit applies to api routes", func(t *testing.T) {
		f := newRouterFixture(t, &config.Config{HTTPMaxBodySize: 8})
		w := f.do(http.MethodPost, "/v1/attachments/verify-hmac", `{"encrypted_buffer":"c2VhbGVk"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("no metrics endpoint on api server", func(t *testing.T) {
		f := newRouterFixture(t, cfg)
		assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/metrics", "").Code)
	})
}

func TestServer_StartRequiresRouter(t *testing.T) {
	assert.Error(t, createTestServer().Start(context.Background()))
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := createTestServer()
	server.router = gin.New()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(shutdownCtx))

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 0, discardLogger(), provider)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
