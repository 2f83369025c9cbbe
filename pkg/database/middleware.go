package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
)

// WithTenantContext creates middleware that sets up a tenant-scoped DB connection.
// It runs AFTER auth middleware and uses the user ID from the JWT claims.
// The connection is automatically cleaned up after the handler returns.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok {
				logger.Error("Missing claims in request context")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing tenant context")
				return
			}

			userID, err := claims.TenantID()
			if err != nil {
				logger.Error("Invalid user ID in claims",
					zap.String("subject", claims.Subject),
					zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID format")
				return
			}

			scope, err := db.WithTenant(r.Context(), userID)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.Int64("user_id", userID),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetTenantScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
