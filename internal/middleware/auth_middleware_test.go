package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-file-share/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestIssuer(t *testing.T) (*utils.TokenIssuer, string) {
	tokens, err := utils.NewTokenIssuer("middleware-secret", time.Hour)
	require.NoError(t, err)

	// 生成token
	token, err := tokens.Generate(7, "testuser")
	require.NoError(t, err)
	return tokens, token
}

func TestIdentify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens, token := setupTestIssuer(t)

	foreign, err := utils.NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	foreignToken, err := foreign.Generate(7, "testuser")
	require.NoError(t, err)

	tests := []struct {
		name         string
		requireToken bool
		header       string
		wantStatus   int
		wantCaller   bool
	}{
		{name: "Valid token", header: "Bearer " + token, wantStatus: http.StatusOK, wantCaller: true},
		{name: "No header, token optional", wantStatus: http.StatusOK},
		{name: "No header, token required", requireToken: true, wantStatus: http.StatusUnauthorized},
		{name: "Invalid auth format", header: "InvalidFormat token", wantStatus: http.StatusUnauthorized},
		{name: "Invalid token", header: "Bearer invalid.token.here", wantStatus: http.StatusUnauthorized},
		{name: "Foreign secret", header: "Bearer " + foreignToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 创建测试路由
			r := gin.New()
			r.Use(Identify(tokens, tt.requireToken))
			r.GET("/test", func(c *gin.Context) {
				userID, username, ok := Caller(c)
				c.JSON(http.StatusOK, gin.H{"user_id": userID, "username": username, "ok": ok})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			if tt.wantCaller {
				assert.JSONEq(t, `{"user_id":7,"username":"testuser","ok":true}`, w.Body.String())
			} else {
				assert.JSONEq(t, `{"user_id":0,"username":"","ok":false}`, w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), GinZapLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/download/:file_id", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/download/:file_id", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")), 1.0)
}
