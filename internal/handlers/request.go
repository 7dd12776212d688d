package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"go_5_course_keep/internal/middleware"
	"go_5_course_keep/internal/model"
	"go_5_course_keep/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// actorFrom はリクエスト主体を取り出します。取れなければエラーレスポンスを書いて false を返します。
func actorFrom(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (model.Actor, bool) {
	actor, err := middleware.GetActorFromContext(r.Context())
	if err != nil {
		logger.Warn("Unauthorized access attempt", slog.String("error", err.Error()))
		webutil.HandleError(w, logger, err)
		return model.Actor{}, false
	}
	return actor, true
}

// requireTeacher は教師以外を 403 で弾きます。
func requireTeacher(w http.ResponseWriter, logger *slog.Logger, actor model.Actor) bool {
	if actor.Role != model.RoleTeacher {
		logger.Warn("Teacher role required", slog.String("role", string(actor.Role)))
		webutil.HandleError(w, logger, errTeacherOnly)
		return false
	}
	return true
}

// uuidParam は URL パラメータを UUID として読みます。
func uuidParam(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid ID format in URL", slog.String("param", name), slog.String("value", raw))
		appErr := model.NewAppError("INVALID_URL_PARAM", name+"の形式が正しくありません。", name, model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate はボディをデコードし、validate タグで検証します。
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst interface{}) bool {
	if err := webutil.DecodeJSONBody(r, dst); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return false
	}
	if err := webutil.ValidateStruct(dst); err != nil {
		logger.Warn("Validation failed", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return false
	}
	return true
}

// respondServiceError は NotFound を Info、それ以外を Error で記録してからエラーを返します。
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		logger.Info(msg, slog.Any("error", err))
	case errors.Is(err, model.ErrInternalServer):
		logger.Error(msg, slog.Any("error", err))
	default:
		logger.Warn(msg, slog.Any("error", err))
	}
	webutil.HandleError(w, logger, err)
}

// emptyIfNil は nil スライスを [] で返すためのものです。
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
