package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/common/httputil"
)

// Messages returned to callers rejected by RequireService.
const (
	MsgMissingAuthorization = "Authorization header missing"
	MsgInvalidToken         = "Invalid or expired token"
	MsgWrongService         = "Invalid service token"
)

type claimsKey struct{}

// RequireService admits only callers presenting a valid bearer token whose
// service claim equals expected. A missing header or a token that fails
// verification is a 401; a verified token for another role is a 403. The
// verified claims are stored in the request context.
func RequireService(verifier tokens.Verifier, expected tokens.Role, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := httputil.BearerToken(r)
			if errors.Is(err, httputil.ErrMissingAuthorization) {
				reject(w, r, logger, tokens.ErrMissingCredential)
				return
			}
			if err != nil {
				reject(w, r, logger, &tokens.AuthError{Kind: tokens.KindMalformed, Err: err})
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				reject(w, r, logger, err)
				return
			}
			if err := tokens.Authorize(claims, expected); err != nil {
				reject(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFromContext returns the claims stored by RequireService.
func ClaimsFromContext(ctx context.Context) (*tokens.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*tokens.Claims)
	return claims, ok
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := http.StatusUnauthorized, MsgInvalidToken

	var authErr *tokens.AuthError
	if errors.As(err, &authErr) {
		switch {
		case authErr.Kind == tokens.KindMissingCredential:
			msg = MsgMissingAuthorization
		case authErr.Forbidden():
			status, msg = http.StatusForbidden, MsgWrongService
		}
	}

	logger.WarnContext(r.Context(), "service token rejected",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("ip", httputil.GetClientIP(r)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	httputil.WriteError(w, status, msg)
}
