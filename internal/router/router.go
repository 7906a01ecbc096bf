// Package router wires the HTTP endpoints of the service: registration,
// login, user listing, mutation and deletion, the storage health check and
// the trusted-subnet internal stats endpoint.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/usersvc/internal/authenticator"
	"github.com/patric-chuzhbe/usersvc/internal/gzippedhttp"
	"github.com/patric-chuzhbe/usersvc/internal/ipchecker"
	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/models"
	"github.com/patric-chuzhbe/usersvc/internal/service"
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

type userService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*user.User, error)

	Login(ctx context.Context, req models.LoginRequest) (*user.User, string, error)

	GetUsers(ctx context.Context) ([]models.PublicUser, error)

	DeleteUser(ctx context.Context, userID string) (*user.User, bool, error)

	UpdateUsername(ctx context.Context, userID, username string) (*user.User, error)

	GetStats(ctx context.Context) (models.InternalStats, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Router bundles the HTTP handlers with their collaborators.
type Router struct {
	service        userService
	db             pinger
	ipChecker      *ipchecker.IPChecker
	authCookieName string
	sessionTTL     time.Duration
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error encoding the response payload: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{Error: message})
}

// PostRegister handles `POST /register`: it validates the required fields,
// rejects duplicate emails and responds with 201 and the redacted created
// user. Store failures are logged and surfaced as a generic 400.
func (router *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	createdUser, err := router.service.Register(request.Context(), req)
	switch {
	case errors.Is(err, service.ErrMissingRequiredFields):
		writeError(response, http.StatusBadRequest, "Missing required fields")
		return
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeError(response, http.StatusBadRequest, "User already exists")
		return
	case err != nil:
		logger.Log.Debugln("Error calling the `router.service.Register()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Registration failed")
		return
	}

	writeJSON(response, http.StatusCreated, models.NewPublicUser(createdUser))
}

// PostLogin handles `POST /login`: it verifies the credentials, issues a
// fresh session token, sets it as the auth cookie and responds with the
// redacted user. Unknown email and wrong password are both 403.
func (router *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	loggedInUser, sessionToken, err := router.service.Login(request.Context(), req)
	switch {
	case errors.Is(err, service.ErrMissingRequiredFields):
		writeError(response, http.StatusBadRequest, "Missing required fields")
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(response, http.StatusForbidden, "Invalid credentials")
		return
	case err != nil:
		logger.Log.Debugln("Error calling the `router.service.Login()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Login failed")
		return
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     router.authCookieName,
			Value:    sessionToken,
			Path:     "/",
			Expires:  time.Now().Add(router.sessionTTL),
			HttpOnly: true,
		},
	)

	writeJSON(response, http.StatusOK, models.NewPublicUser(loggedInUser))
}

// GetUsers handles `GET /users` and returns all users in their redacted
// representation. Requires an authenticated session.
func (router *Router) GetUsers(response http.ResponseWriter, request *http.Request) {
	users, err := router.service.GetUsers(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.service.GetUsers()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Unable to list users")
		return
	}

	writeJSON(response, http.StatusOK, users)
}

// DeleteUsersid handles `DELETE /users/{id}`. Deleting a non-existent id
// is not an error: the response is 200 with a null body.
func (router *Router) DeleteUsersid(response http.ResponseWriter, request *http.Request) {
	userID := chi.URLParam(request, "id")

	deletedUser, found, err := router.service.DeleteUser(request.Context(), userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.service.DeleteUser()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Unable to delete user")
		return
	}
	if !found {
		writeJSON(response, http.StatusOK, nil)
		return
	}

	writeJSON(response, http.StatusOK, models.NewPublicUser(deletedUser))
}

// PatchUsersid handles `PATCH /users/{id}` and updates the username.
func (router *Router) PatchUsersid(response http.ResponseWriter, request *http.Request) {
	var req models.UpdateUserRequest
	if err := json.NewDecoder(request.Body).Decode(&req); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	updatedUser, err := router.service.UpdateUsername(
		request.Context(),
		chi.URLParam(request, "id"),
		req.Username,
	)
	switch {
	case errors.Is(err, service.ErrMissingRequiredFields):
		writeError(response, http.StatusBadRequest, "Missing required fields")
		return
	case err != nil:
		logger.Log.Debugln("Error calling the `router.service.UpdateUsername()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Unable to update user")
		return
	}

	writeJSON(response, http.StatusOK, models.NewPublicUser(updatedUser))
}

// GetPing handles `GET /ping` and reports the storage health.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.db.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `router.db.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetApiinternalstats handles `GET /api/internal/stats`. The endpoint is
// reachable only from the configured trusted subnet.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	if router.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := router.ipChecker.GetClientIP(request)
	if err != nil || !router.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := router.service.GetStats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `router.service.GetStats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

// New assembles the chi router with the logging and gzip middleware and
// the authentication/ownership chains on the protected endpoints.
func New(
	theService userService,
	db pinger,
	theAuth authenticator.Authenticator,
	ipChecker *ipchecker.IPChecker,
	authCookieName string,
	sessionTTL time.Duration,
) *chi.Mux {
	myRouter := &Router{
		service:        theService,
		db:             db,
		ipChecker:      ipChecker,
		authCookieName: authCookieName,
		sessionTTL:     sessionTTL,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Post(`/register`, myRouter.PostRegister)
	router.Post(`/login`, myRouter.PostLogin)
	router.With(theAuth.AuthenticateUser).Get(`/users`, myRouter.GetUsers)
	router.With(
		theAuth.AuthenticateUser,
		theAuth.RequireOwner,
	).Delete(`/users/{id}`, myRouter.DeleteUsersid)
	router.With(
		theAuth.AuthenticateUser,
		theAuth.RequireOwner,
	).Patch(`/users/{id}`, myRouter.PatchUsersid)
	router.Get(`/ping`, myRouter.GetPing)
	router.Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	return router
}
