// Package auth provides middleware and helpers for cookie-session
// authentication and ownership checks in HTTP requests. The session token
// is an opaque secret stored on the user record and presented via a named
// cookie; it is resolved against storage by exact match.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

type sessionKeeper interface {
	GetUserBySessionToken(ctx context.Context, sessionToken string) (*user.User, bool, error)
}

// Auth authenticates requests by resolving the session cookie against the
// user storage and attaches the matched identity to the request context.
type Auth struct {
	// db is the interface to the user data storage.
	db sessionKeeper

	// authCookieName is the name of the cookie carrying the session token.
	authCookieName string
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// IdentityKey is the context key used to store and retrieve the authenticated user.
const IdentityKey ContextKey = "identity"

// New creates a new Auth handler with the given user data access layer
// and session cookie name.
func New(db sessionKeeper, authCookieName string) *Auth {
	return &Auth{
		db:             db,
		authCookieName: authCookieName,
	}
}

// decision is the outcome of a middleware check: either an identity to
// continue with or a status to reject with. Only the composing wrapper
// ever calls the next handler, so a rejection can never fall through to
// the downstream chain.
type decision struct {
	identity *user.User
	status   int
}

func continueWith(identity *user.User) decision {
	return decision{identity: identity}
}

func reject(status int) decision {
	return decision{status: status}
}

func (d decision) rejected() bool {
	return d.identity == nil
}

func (a *Auth) checkSession(request *http.Request) decision {
	cookie, err := request.Cookie(a.authCookieName)
	if err != nil || cookie.Value == "" {
		return reject(http.StatusForbidden)
	}

	usr, found, err := a.db.GetUserBySessionToken(request.Context(), cookie.Value)
	if err != nil {
		logger.Log.Debugln("Error calling the `a.db.GetUserBySessionToken()`: ", zap.Error(err))
		return reject(http.StatusBadRequest)
	}
	if !found || !usr.HasActiveSession(time.Now()) {
		return reject(http.StatusForbidden)
	}

	return continueWith(usr)
}

// AuthenticateUser is an HTTP middleware that authenticates incoming
// requests using the session cookie. A missing cookie or an unknown token
// terminates the request with 403 Forbidden; a storage failure is logged
// and terminates the request with 400. On success the matched user is
// stored in the request context and the next handler is invoked.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		theDecision := a.checkSession(request)
		if theDecision.rejected() {
			response.WriteHeader(theDecision.status)

			return
		}

		requestWithCtx := request.WithContext(
			ContextWithIdentity(request.Context(), theDecision.identity),
		)
		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

func (a *Auth) checkOwnership(request *http.Request) decision {
	identity, ok := IdentityFromContext(request.Context())
	if !ok {
		// No authenticated identity in context - fail closed.
		return reject(http.StatusForbidden)
	}

	targetID := chi.URLParam(request, "id")
	if targetID == "" || identity.ID != targetID {
		return reject(http.StatusForbidden)
	}

	return continueWith(identity)
}

// RequireOwner is an HTTP middleware that permits the request only when
// the authenticated identity matches the `id` route parameter. It must be
// chained after AuthenticateUser; without an identity in context it
// rejects with 403.
func (a *Auth) RequireOwner(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		theDecision := a.checkOwnership(request)
		if theDecision.rejected() {
			response.WriteHeader(theDecision.status)

			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}

// ContextWithIdentity returns a derived context carrying the authenticated user.
func ContextWithIdentity(ctx context.Context, identity *user.User) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext extracts the authenticated user from the context if present.
func IdentityFromContext(ctx context.Context) (*user.User, bool) {
	identity, ok := ctx.Value(IdentityKey).(*user.User)
	return identity, ok
}
