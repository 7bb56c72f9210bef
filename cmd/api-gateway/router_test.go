package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-backend/internal/common/config"
	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/common/jwt"
	"github.com/dumeirei/marketplace-backend/internal/common/validation"
	"github.com/dumeirei/marketplace-backend/internal/middleware"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

const testSecret = "router-test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Name: "marketplace-test", Mode: "test"},
		JWT:       config.JWTConfig{Secret: testSecret, AccessTokenExpire: 1, Issuer: "test"},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1000},
		Business: config.BusinessConfig{Commission: config.CommissionConfig{
			RateCacheEnabled: true,
			RateCacheTTL:     60,
			DefaultCurrency:  "usd",
		}},
	}
}

func setupTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Register())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := testConfig()
	r := gin.New()
	setupRouter(r, cfg, zap.NewNop(), db, redisClient, buildServices(cfg, db, redisClient))
	return r, db
}

func token(t *testing.T, userID int64, userType, role string) string {
	t.Helper()
	m := jwt.NewManager(&jwt.Config{Secret: testSecret, AccessExpireTime: time.Hour, Issuer: "test"})
	tok, _, err := m.GenerateAccessToken(userID, userType, role)
	require.NoError(t, err)
	return tok
}

func call(r *gin.Engine, method, path, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const rateBody = `{"code":"default","name":"Default","type":"percentage","target":"item","value":"10"}`

const previewBody = `{"contexts":[{"items":[{"id":"item_1","subtotal":"100","tax_total":"0","product":{"id":"p"}}]}]}`

// ==================== 路由测试 ====================

func TestRouter_Probes(t *testing.T) {
	r, _ := setupTestServer(t)

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, "pong", call(r, http.MethodGet, "/ping", "", "").Body.String())
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/ready", "", "").Code)

	w := call(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Authentication(t *testing.T) {
	r, _ := setupTestServer(t)

	t.Run("未携带令牌", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodPost, "/api/v1/commission/lines/preview", "", previewBody).Code)
		assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/v1/admin/commission/rates", "", "").Code)
	})

	t.Run("服务令牌不能访问管理端", func(t *testing.T) {
		tok := token(t, 7, jwt.UserTypeService, "")
		assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/v1/admin/commission/rates", tok, "").Code)
	})

	t.Run("普通管理员只读", func(t *testing.T) {
		tok := token(t, 2, jwt.UserTypeAdmin, "viewer")
		assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/admin/commission/rates", tok, "").Code)
		assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/v1/admin/commission/rates", tok, rateBody).Code)
		assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/v1/admin/operation-logs", tok, "").Code)
	})
}

func TestRouter_AdminWriteThenCalculate(t *testing.T) {
	r, db := setupTestServer(t)
	adminTok := token(t, 1, jwt.UserTypeAdmin, middleware.RoleCommissionManager)
	serviceTok := token(t, 100, jwt.UserTypeService, "")

	// 先计算一次，使空费率快照进入缓存
	w := call(r, http.MethodPost, "/api/v1/commission/lines/preview", serviceTok, previewBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = call(r, http.MethodPost, "/api/v1/admin/commission/rates", adminTok, rateBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 管理端写入后缓存失效，新费率立即生效
	w = call(r, http.MethodPost, "/api/v1/commission/lines", serviceTok, previewBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var line models.CommissionLine
	require.NoError(t, db.Where("item_id = ?", "item_1").First(&line).Error)
	assert.Equal(t, "default", line.Code)
	assert.Equal(t, "10.00", line.Amount.StringFixed(2))

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&models.OperationLog{}).Where("admin_id = ? AND module = ?", 1, models.OperationModuleCommissionRate).Count(&count)
		return count == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRouter_RequestSizeLimit(t *testing.T) {
	r, _ := setupTestServer(t)
	serviceTok := token(t, 100, jwt.UserTypeService, "")

	big := `{"contexts":[{"items":[{"id":"` + strings.Repeat("x", maxCalculationBodySize) + `"}]}]}`
	w := call(r, http.MethodPost, "/api/v1/commission/lines/preview", serviceTok, big)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

var (
	swagRouterPattern = regexp.MustCompile(`@Router\s+(\S+)\s+\[(\w+)\]`)
	ginParamPattern   = regexp.MustCompile(`:(\w+)`)
)

func TestRouter_SwaggerAnnotations(t *testing.T) {
	r, _ := setupTestServer(t)

	annotated := make(map[string]bool)
	err := filepath.WalkDir("../../internal/handler", func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range swagRouterPattern.FindAllStringSubmatch(string(src), -1) {
			annotated[strings.ToUpper(m[2])+" "+m[1]] = true
		}
		return nil
	})
	require.NoError(t, err)

	registered := make(map[string]bool)
	hasSwagger := false
	for _, route := range r.Routes() {
		if route.Path == "/swagger/*any" {
			hasSwagger = true
		}
		if !strings.HasPrefix(route.Path, "/api/v1/") {
			continue
		}
		key := route.Method + " " + ginParamPattern.ReplaceAllString(route.Path, "{$1}")
		registered[key] = true
		assert.True(t, annotated[key], "接口缺少 @Router 注解: %s", key)
	}
	assert.True(t, hasSwagger)

	for key := range annotated {
		assert.True(t, registered[key], "注解对应的接口未注册: %s", key)
	}
}
