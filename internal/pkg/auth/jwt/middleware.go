package jwt

import (
	"context"
	"net/http"
	"strings"

	"strangerchat/internal/pkg/errs"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/resp"
)

type contextKey string

// ContextAuthPayloadKey is the request-context key for the validated admin Payload.
const ContextAuthPayloadKey contextKey = "auth_payload"

// RequireAdmin rejects requests without a valid admin bearer token with 401.
func RequireAdmin(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			payload, err := ParseToken(parts[1], secretKey)
			if err != nil {
				logx.Warn("Rejected admin request with invalid token", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			if payload.Role != RoleAdmin {
				logx.Warn("Rejected admin request with non-admin role", "subject", payload.Subject, "role", payload.Role)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPayloadFromContext returns the admin Payload stored by RequireAdmin, or nil.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}
	return payload
}
