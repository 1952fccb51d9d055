package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"strangerchat/internal/app/match"
	"strangerchat/internal/app/tokens"
	"strangerchat/internal/pkg/auth/jwt"
	"strangerchat/internal/pkg/errs"
	"strangerchat/internal/pkg/logx"
	"strangerchat/internal/pkg/resp"
)

type TokenListResponse struct {
	Count  int              `json:"count"`
	Tokens []tokens.Device `json:"tokens"`
}

type DeleteTokensResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
	Count  int64  `json:"count"`
}

type EngineResponse struct {
	match.Stats
	Clients int `json:"clients"`
}

// HandleListTokens returns every registered push token.
func HandleListTokens(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := deps.Tokens.List(r.Context())
		if err != nil {
			logx.Error(err, "Failed to list push tokens")
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenStoreFailed))
			return
		}

		resp.RespondSuccess(w, r, TokenListResponse{Count: len(devices), Tokens: devices})
	}
}

// HandleTokenStats returns registration and app-open counters.
func HandleTokenStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Tokens.Stats(r.Context())
		if err != nil {
			logx.Error(err, "Failed to compute token stats")
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenStoreFailed))
			return
		}

		resp.RespondSuccess(w, r, stats)
	}
}

// HandleDeleteToken removes a single push token.
func HandleDeleteToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		deleted, err := deps.Tokens.DeleteToken(r.Context(), token)
		if err != nil {
			logx.Error(err, "Failed to delete push token")
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenStoreFailed))
			return
		}
		if !deleted {
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenNotFound))
			return
		}

		logx.Info("Push token deleted by admin", "admin", adminSubject(r))
		resp.RespondSuccess(w, r, DeleteTokensResponse{Status: "deleted", Token: token, Count: 1})
	}
}

// HandleDeleteAllTokens removes every push token.
func HandleDeleteAllTokens(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := deps.Tokens.DeleteAll(r.Context())
		if err != nil {
			logx.Error(err, "Failed to delete push tokens")
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenStoreFailed))
			return
		}

		logx.Warn("All push tokens deleted by admin", "admin", adminSubject(r), "count", count)
		resp.RespondSuccess(w, r, DeleteTokensResponse{Status: "deleted", Count: count})
	}
}

// HandleEngineStats returns the matchmaking engine counters.
func HandleEngineStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := EngineResponse{Stats: deps.Engine.Snapshot()}
		if deps.Manager != nil {
			data.Clients = deps.Manager.Count()
		}

		resp.RespondSuccess(w, r, data)
	}
}

func adminSubject(r *http.Request) string {
	if payload := jwt.GetPayloadFromContext(r); payload != nil {
		return payload.Subject
	}
	return ""
}
