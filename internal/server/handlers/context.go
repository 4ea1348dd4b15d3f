package handlers

import "context"

// contextKey тип ключей контекста запроса
type contextKey string

const (
	// UserIDKey ID аутентифицированного пользователя
	UserIDKey contextKey = "user_id"
	// UsernameKey имя аутентифицированного пользователя
	UsernameKey contextKey = "username"
)

// GetUserID извлекает ID пользователя из контекста
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает имя пользователя из контекста
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// WithUser возвращает контекст с данными пользователя
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UsernameKey, username)
}
