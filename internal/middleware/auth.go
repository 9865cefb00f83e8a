package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// Authenticator resolves a bearer token to a wallet address.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Auth validates bearer tokens and stores the wallet on the request
// context. Required handlers reject unauthenticated requests; Optional
// ones pass them through anonymously.
type Auth struct {
	svc Authenticator
	log *logging.Logger
}

// NewAuth builds the auth middleware around the token validator.
func NewAuth(svc Authenticator, log *logging.Logger) *Auth {
	return &Auth{svc: svc, log: log}
}

// Required rejects requests without a valid bearer token.
func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeAuthError(w, apperr.Unauthorized("missing authorization header"))
			return
		}

		wallet, err := a.svc.Authenticate(r.Context(), token)
		if err != nil {
			a.log.WithContext(r.Context()).WithError(err).Debug("authentication failed")
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(logging.WithWallet(r.Context(), wallet)))
	})
}

// Optional attaches the wallet when a valid token is present and continues
// anonymously otherwise.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			if wallet, err := a.svc.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(logging.WithWallet(r.Context(), wallet))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, err error) {
	svcErr := apperr.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperr.Unauthorized("")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(svcErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": svcErr})
}
