package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/diewo77/go-stock/internal/httpx"
	"github.com/diewo77/go-stock/internal/models"
)

// Headers carrying the caller identity. Authentication itself happens
// upstream; these headers are trusted as-is.
const (
	HeaderActorKind = "X-Actor-Kind"
	HeaderActorID   = "X-Actor-ID"
)

type ctxKey string

const actorCtxKey = ctxKey("actor")

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, a)
}

// ActorFromContext returns the actor set by RequireActor.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorCtxKey).(models.Actor)
	return a, ok
}

// RequireActor rejects requests without a valid actor with 401.
// The kind defaults to admin.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorKind)))
		if kind == "" {
			kind = string(models.ActorAdmin)
		}
		a := models.Actor{Kind: models.ActorKind(kind)}
		if raw := strings.TrimSpace(r.Header.Get(HeaderActorID)); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthenticated", "invalid actor id")
				return
			}
			a.ID = uint(id)
		}
		if !a.Valid() {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthenticated", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
	})
}

func actor(r *http.Request) models.Actor {
	a, _ := ActorFromContext(r.Context())
	return a
}
