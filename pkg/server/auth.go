package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pvcast/pvcast/pkg/log"
)

// authMiddleware requires a valid bearer ID token when OIDC is configured.
// When run-daily-emails is set the token's email must be one of them.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if len(s.oidcVerifiers) == 0 {
			log.Ctx(ctx).DebugContext(ctx, "auth disabled, no oidc audience configured")
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Ctx(ctx).WarnContext(ctx, "missing authorization header")
			writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		email, subject, err := s.authenticateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid id token", http.StatusUnauthorized)
			return
		}

		if len(s.runDailyEmails) > 0 && !s.isAllowedEmail(email) {
			log.Ctx(ctx).WarnContext(ctx, "email not allowed to run jobs", slog.String("email", email))
			writeJSONError(w, "unauthorized email", http.StatusForbidden)
			return
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authSubject", subject)))
		log.Ctx(ctx).DebugContext(ctx, "authenticated request", slog.String("email", email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) isAllowedEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, allowed := range s.runDailyEmails {
		if subtle.ConstantTimeCompare([]byte(email), []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, string, error) {
	var errs []error

	for issuer, verifier := range s.oidcVerifiers {
		idToken, err := verifier(ctx, token)
		if err == nil {
			var claims struct {
				Email string `json:"email"`
			}
			err = idToken.Claims(&claims)
			if err == nil {
				return claims.Email, idToken.Subject, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", issuer, err))
	}

	if len(errs) > 1 {
		return "", "", errors.Join(errs...)
	}
	if len(errs) == 1 {
		return "", "", errs[0]
	}
	return "", "", errors.New("no valid audiences configured or token invalid")
}
