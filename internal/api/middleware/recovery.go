// recovery.go — перехват паники в обработчиках: лог со стеком и 500 в формате API.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/chai-api/internal/api/errors"
)

// Recoverer возвращает middleware, превращающий панику обработчика в 500.
// http.ErrAbortHandler пробрасывается дальше.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // сравнение значения паники
					panic(rec)
				}
				logger.Error("Паника в обработчике",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.InternalError(w, apierrors.MsgPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
