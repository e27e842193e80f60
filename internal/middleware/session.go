package middleware

import (
	"context"
	"net/http"

	"github.com/mmeshcher/sweetshop-storefront/internal/identity"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionSource предоставляет снимок текущей сессии.
type SessionSource interface {
	Snapshot() identity.Snapshot
}

// Session добавляет снимок сессии в контекст каждого запроса, чтобы
// обработчики видели согласованное состояние на всём протяжении запроса.
func Session(source SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), sessionKey, source.Snapshot())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext извлекает снимок сессии из контекста запроса.
func GetSessionFromContext(ctx context.Context) (identity.Snapshot, bool) {
	snap, ok := ctx.Value(sessionKey).(identity.Snapshot)
	return snap, ok
}
