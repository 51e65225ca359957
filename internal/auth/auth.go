// Package auth restricts the scraper routes to the collection owner.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/config"
)

// ErrForbidden is returned when the caller is not the owner.
var ErrForbidden = errors.New("forbidden")

type ownerKey struct{}

// WithOwner attaches the owner identity to ctx.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the identity stored by RequireOwner and whether the request was authorized.
func Owner(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok
}

// Guard checks caller keys against the configured owner key.
type Guard struct {
	enabled bool
	key     []byte
	owner   string
	logger  *zap.Logger
}

// NewGuard builds a Guard from the auth section.
func NewGuard(cfg config.AuthConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		enabled: cfg.Enabled,
		key:     []byte(cfg.APIKey),
		owner:   cfg.OwnerEmail,
		logger:  logger.Named("auth"),
	}
}

// Check returns ErrForbidden unless the request carries the owner key.
func (g *Guard) Check(r *http.Request) error {
	if !g.enabled {
		return nil
	}
	presented := callerKey(r)
	if presented == "" || len(g.key) == 0 {
		return ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(presented), g.key) != 1 {
		return ErrForbidden
	}
	return nil
}

// RequireOwner rejects non-owner callers with 403.
func (g *Guard) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			g.logger.Warn("owner check failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), g.owner)))
	})
}

func callerKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	authz := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
		return strings.TrimSpace(authz[len(prefix):])
	}
	return ""
}
