package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/larek/internal/domain/auth"
)

// APIKeyHeader is the request header carrying the client API key.
const APIKeyHeader = "api_key"

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate resolves an API key. The stored hash is compared in constant
// time with the computed one.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	sum := auth.Sum(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(sum))
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Warn("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(sum, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

type apiKeyCtxKey struct{}

// APIKeyFromContext returns the key that authenticated the request.
func APIKeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// Require rejects requests without a valid API key granting scope.
func (s *SecurityHandler) Require(scope auth.Scope, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := s.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		if !info.HasScope(scope) {
			writeError(w, http.StatusForbidden, errForbidden.Error(), nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
		ctx = zctx.With(ctx, zap.String("api_key_id", info.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
