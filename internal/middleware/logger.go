// internal/middleware/logger.go
package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware" // chiのミドルウェアヘルパーを使う
)

// NewStructuredLogger はリクエストスコープのロガーをコンテキストに格納し、完了時にアクセスログを出します。
func NewStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()
			requestID := middleware.GetReqID(r.Context())

			reqLogger := logger.With(slog.String("request_id", requestID))
			ctx := WithLogger(r.Context(), reqLogger)

			// リクエストボディはデバッグ時のみ読む
			var reqBody []byte
			debug := logger.Enabled(ctx, slog.LevelDebug)
			if debug && r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewBuffer(reqBody))
			}
			var respBody *bytes.Buffer
			if debug {
				respBody = new(bytes.Buffer)
				ww.Tee(respBody)
			}

			defer func() {
				level := slog.LevelInfo
				if ww.Status() >= 500 {
					level = slog.LevelError
				} else if ww.Status() >= 400 {
					level = slog.LevelWarn
				}

				latency := time.Since(t1)
				attrs := []slog.Attr{
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes_out", ww.BytesWritten()),
					slog.Duration("latency_ms", latency),
					slog.String("latency_human", latency.String()),
				}
				reqLogger.LogAttrs(ctx, level, "Request completed", attrs...)

				if debug {
					reqLogger.Debug("Request detail",
						"headers", formatHeaders(r.Header),
						"body", string(reqBody),
					)
					reqLogger.Debug("Response detail",
						"status", ww.Status(),
						"headers", formatHeaders(ww.Header()),
						"body", respBody.String(),
					)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// WithLogger はロガーをコンテキストに格納します。HTTP 以外 (cron ジョブなど) からも使います。
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey{}, logger)
}
