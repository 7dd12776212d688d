// internal/middleware/dev_auth.go
package middleware

import (
	"net/http"

	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/webutil"

	"github.com/google/uuid"
)

// DevActorMiddleware は開発時用ミドルウェアです。
// X-User-ID / X-User-Role ヘッダーから主体を組み立てます。トークン検証は行いません。
func DevActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := GetLogger(r.Context())

		idStr := r.Header.Get("X-User-ID")
		actorID, err := uuid.Parse(idStr)
		if err != nil {
			logger.Warn("[DEV AUTH] Failed: invalid or missing X-User-ID", "value", idStr)
			appErr := model.NewAppError("UNAUTHORIZED", "[DEV] X-User-ID ヘッダーが必要です。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}

		role := model.ActorRole(r.Header.Get("X-User-Role"))
		if role == "" {
			role = model.RoleTeacher
		}
		if !role.Valid() {
			logger.Warn("[DEV AUTH] Failed: invalid X-User-Role", "role", role)
			appErr := model.NewAppError("UNAUTHORIZED", "[DEV] X-User-Role が不正です。", "", model.ErrForbidden)
			webutil.HandleError(w, logger, appErr)
			return
		}

		logger.Debug("[DEV AUTH] Actor set to context (no validation)", "actor_id", actorID, "role", role)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), model.Actor{ID: actorID, Role: role})))
	})
}
