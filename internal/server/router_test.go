package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kataras/iris/v12"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/momchat/internal/auth"
	"github.com/example/momchat/internal/config"
	"github.com/example/momchat/internal/middleware"
	"github.com/example/momchat/internal/realtime"
	"github.com/example/momchat/internal/repository/mysql"
	"github.com/example/momchat/internal/service"
)

func newTestDeps(t *testing.T) (*Deps, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), mysql.GormConfig("silent"))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.JWT.Secret = "access-secret"
	cfg.JWT.RefreshSecret = "refresh-secret"

	log := zap.NewNop()
	monitor := service.NewMonitor()
	hub := realtime.NewHub(log, monitor)
	t.Cleanup(hub.Close)

	userRepo := mysql.NewUserRepository(db)
	blockRepo := mysql.NewBlockRepository(db)
	messageRepo := mysql.NewMessageRepository(db)
	reportRepo := mysql.NewReportRepository(db)

	d := &Deps{
		Config:   cfg,
		Log:      log,
		Monitor:  monitor,
		Hub:      hub,
		Verifier: auth.NewVerifier(&cfg.JWT, nil, log),
		Limiter:  middleware.NewMessageLimiter(&cfg.RateLimit),
		Users:    service.NewUserService(userRepo, &cfg.JWT),
		Messages: service.NewMessageService(userRepo, blockRepo, messageRepo, mysql.NewTxManager(db), hub, monitor, log),
		Threads:  service.NewThreadService(mysql.NewThreadRepository(db), messageRepo),
		Blocks:   service.NewBlockService(userRepo, blockRepo),
		Reports:  service.NewReportService(userRepo, messageRepo, reportRepo, nil, monitor, log),
	}
	return d, mock
}

func newApp(t *testing.T, d *Deps, register func(*iris.Application, *Deps)) *iris.Application {
	t.Helper()
	app := iris.New()
	register(app, d)
	require.NoError(t, app.Build())
	return app
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func do(t *testing.T, app *iris.Application, method, path, body string, header http.Header) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	code, env := do(t, app, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	for _, path := range []string{"/api/threads", "/api/users/me"} {
		code, env := do(t, app, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, http.StatusUnauthorized, env.Code)
	}
	code, _ := do(t, app, http.MethodGet, "/api/threads", "", http.Header{"Authorization": {"Bearer forged"}})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegisterValidationError(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	code, env := do(t, app, http.MethodPost, "/api/auth/register", `{"email":"nope","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid email address", env.Msg)

	code, _ = do(t, app, http.MethodPost, "/api/auth/register", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLoginUnknownEmail(t *testing.T) {
	d, mock := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	mock.ExpectQuery("SELECT \\* FROM `users` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	code, env := do(t, app, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", env.Msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	pair, err := auth.GenerateTokens(&d.Config.JWT, "u1", "a@example.com")
	require.NoError(t, err)

	code, _ := do(t, app, http.MethodPost, "/api/auth/refresh", "", http.Header{"Authorization": {"Bearer " + pair.AccessToken}})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMetricsEndpoint(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterRoutes)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "momchat_messages_sent_total")
	assert.Contains(t, rec.Body.String(), "momchat_realtime_connections")
}

func TestFailHidesInternalErrors(t *testing.T) {
	app := iris.New()
	app.Get("/internal", func(ctx iris.Context) {
		fail(ctx, zap.NewNop(), pkgerrors.Wrap(gorm.ErrInvalidDB, "insert message"))
	})
	app.Get("/forbidden", func(ctx iris.Context) {
		fail(ctx, zap.NewNop(), service.Forbidden("You cannot send a message to yourself"))
	})
	require.NoError(t, app.Build())

	code, env := do(t, app, http.MethodGet, "/internal", "", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", env.Msg)

	code, env = do(t, app, http.MethodGet, "/forbidden", "", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, http.StatusForbidden, env.Code)
	assert.Equal(t, "You cannot send a message to yourself", env.Msg)
}

func TestAdminRoutes(t *testing.T) {
	d, _ := newTestDeps(t)
	app := newApp(t, d, RegisterAdminRoutes)

	code, env := do(t, app, http.MethodGet, "/api/stats", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "messaging")

	code, _ = do(t, app, http.MethodGet, "/api/reports?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPut, "/api/reports/r1/status", `{"status":"closed"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
