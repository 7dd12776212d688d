package service

import (
	"errors"
	"log/slog"

	"go_5_course_keep/internal/model"
)

// publicError は呼び出し側へそのまま返してよいエラーかどうかを判定し、
// そうでなければログに残して ErrInternalServer に置き換えます。
func publicError(logger *slog.Logger, msg string, err error) error {
	var appErr *model.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrForbidden):
		return err
	}
	logger.Error(msg, "error", err)
	return model.ErrInternalServer
}
