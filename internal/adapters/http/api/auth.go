package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/okian/follicle/pkg/metrics"
)

type authCtxKey int

const subjectKey authCtxKey = 1

// IssueToken signs an HS256 token for subject, valid for ttl.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// SubjectFromContext returns the authenticated user ID, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

// authenticate requires a valid bearer token when a secret is configured.
// Without a secret every request passes unauthenticated.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	if len(s.jwtSecret) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.authenticate"
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			metrics.RecordAuthFailure()
			s.fail(w, r, WrapKind(op, ErrUnauthorized, errors.New("missing bearer token")))
			return
		}
		sub, err := parseToken(s.jwtSecret, strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			metrics.RecordAuthFailure()
			s.fail(w, r, WrapKind(op, ErrUnauthorized, err))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
	}
}
