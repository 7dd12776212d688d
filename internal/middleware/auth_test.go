package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go_5_course_keep/internal/config"
	"go_5_course_keep/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTActorMiddleware(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	userID := uuid.New()

	var got model.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := GetActorFromContext(r.Context())
		require.NoError(t, err)
		got = actor
		w.WriteHeader(http.StatusNoContent)
	})
	handler := JWTActorMiddleware(cfg)(next)

	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name: "正常系: 有効なトークン",
			header: "Bearer " + signToken(t, "test-secret", jwt.MapClaims{
				"sub": userID.String(), "role": "teacher", "exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "異常系: ヘッダーなし",
			header:     "",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "異常系: 署名キー不一致",
			header: "Bearer " + signToken(t, "other", jwt.MapClaims{
				"sub": userID.String(), "role": "teacher",
			}),
			wantStatus: http.StatusForbidden,
		},
		{
			name: "異常系: 期限切れ",
			header: "Bearer " + signToken(t, "test-secret", jwt.MapClaims{
				"sub": userID.String(), "role": "student", "exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusForbidden,
		},
		{
			name: "異常系: 不正なロール",
			header: "Bearer " + signToken(t, "test-secret", jwt.MapClaims{
				"sub": userID.String(), "role": "admin",
			}),
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}

	assert.Equal(t, userID, got.ID)
	assert.Equal(t, model.RoleTeacher, got.Role)
}

func TestDevActorMiddleware(t *testing.T) {
	userID := uuid.New()
	var got model.Actor
	handler := DevActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("X-User-Role", "student")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.Actor{ID: userID, Role: model.RoleStudent}, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
