package log

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Logger returns a chi middleware that logs every request through the given
// zap logger under the provided name.
func Logger(l *zap.Logger, name string) func(next http.Handler) http.Handler {
	if l == nil {
		panic("log.Logger received a nil *zap.Logger")
	}

	logger := l.WithOptions(zap.AddCallerSkip(1)).Named(name)

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			t1 := time.Now()
			requestID := middleware.GetReqID(r.Context())

			defer func() {
				latency := time.Since(t1)
				statusCode := ww.Status()

				fields := []zap.Field{
					zap.String("type", "http_request"),
					zap.String("request_id", requestID),
					zap.String("http_method", r.Method),
					zap.String("http_path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("http_status_code", statusCode),
					zap.Int64("response_bytes", int64(ww.BytesWritten())),
					zap.Duration("latency", latency),
				}

				msg := fmt.Sprintf("HTTP request completed: %s", r.URL.Path)

				switch {
				case statusCode >= 500:
					logger.Error(msg, fields...)
				case statusCode >= 400:
					logger.Warn(msg, fields...)
				default:
					logger.Info(msg, fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
