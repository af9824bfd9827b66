package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/lvidal/pricealert/internal/auth"
	"github.com/lvidal/pricealert/internal/database/testutil"
	"github.com/lvidal/pricealert/internal/middleware"
	"github.com/lvidal/pricealert/internal/models"
	"github.com/lvidal/pricealert/internal/services"
)

func newAuthTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	email, err := services.NewEmailService(nullMailer{}, "noreply@example.com", "https://alerts.example.com", "PriceAlert")
	require.NoError(t, err)
	verification, err := services.NewVerificationService(db, email,
		services.WithVerificationNow(func() time.Time { return time.Date(2025, time.April, 1, 9, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	handler, err := NewAuthHandler(users, verification, jwt)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/auth/register", handler.Register)
	router.POST("/api/auth/login", handler.Login)
	router.GET("/api/auth/me", middleware.Auth(jwt), handler.Me)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestRegisterCreatesUserAndVerificationToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	router := newAuthTestRouter(t, db)

	rec := postJSON(t, router, "/api/auth/register", gin.H{
		"username": "lena",
		"email":    "lena@example.com",
		"password": "correct horse",
		"name":     "Lena",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := decodeEnvelope(t, rec)
	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "lena", user["username"])

	var tokens int64
	require.NoError(t, db.Model(&models.EmailVerificationToken{}).Count(&tokens).Error)
	require.Equal(t, int64(1), tokens)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	router := newAuthTestRouter(t, db)

	rec := postJSON(t, router, "/api/auth/register", gin.H{
		"username": "ab", // too short
		"email":    "not-an-email",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	router := newAuthTestRouter(t, db)

	payload := gin.H{
		"username": "lena",
		"email":    "lena@example.com",
		"password": "correct horse",
	}
	require.Equal(t, http.StatusCreated, postJSON(t, router, "/api/auth/register", payload).Code)
	require.Equal(t, http.StatusConflict, postJSON(t, router, "/api/auth/register", payload).Code)
}

func TestLoginReturnsTokenUsableAgainstMe(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	router := newAuthTestRouter(t, db)

	postJSON(t, router, "/api/auth/register", gin.H{
		"username": "lena",
		"email":    "lena@example.com",
		"password": "correct horse",
	})

	rec := postJSON(t, router, "/api/auth/login", gin.H{
		"identifier": "lena@example.com",
		"password":   "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)
	token, ok := data["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)

	me := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), "lena@example.com")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	router := newAuthTestRouter(t, db)

	postJSON(t, router, "/api/auth/register", gin.H{
		"username": "lena",
		"email":    "lena@example.com",
		"password": "correct horse",
	})

	rec := postJSON(t, router, "/api/auth/login", gin.H{
		"identifier": "lena",
		"password":   "wrong password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
