package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophdocs/internal/server/handlers"
)

// tokenQueryParam передает токен от браузерных websocket клиентов,
// которые не могут выставить заголовок Authorization при upgrade
const tokenQueryParam = "token"

// AuthMiddleware создает middleware для проверки JWT токена.
// Токен берется из "Authorization: Bearer", а при отсутствии заголовка
// из query параметра token. Данные пользователя кладутся в контекст.
// Если аутентификация выключена, запросы проходят без проверки.
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !jwtConfig.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					logger.Warn("Invalid Authorization header format")
					writeError(w, "unauthorized: invalid token format", http.StatusUnauthorized)
					return
				}
				tokenString = strings.TrimSpace(parts[1])
			} else {
				tokenString = r.URL.Query().Get(tokenQueryParam)
			}

			if tokenString == "" {
				logger.Warn("Missing access token", "path", r.URL.Path)
				writeError(w, "unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, tokenString)
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, "unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			logger.Debug("User authenticated", "user_id", claims.UserID, "username", claims.Username)

			ctx := handlers.WithUser(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
