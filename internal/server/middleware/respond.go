package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/gophdocs/pkg/api"
)

// writeError пишет тело ошибки в формате REST API
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   message,
		Message: http.StatusText(statusCode),
	})
}
