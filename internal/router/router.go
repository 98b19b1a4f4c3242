// Package router exposes the ECG store over HTTP. Handlers decode requests,
// delegate to the service layer and translate its errors into statuses.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/ecgstore/internal/auth"
	"github.com/patric-chuzhbe/ecgstore/internal/gzippedhttp"
	"github.com/patric-chuzhbe/ecgstore/internal/logger"
	"github.com/patric-chuzhbe/ecgstore/internal/models"
	"github.com/patric-chuzhbe/ecgstore/internal/service"
)

const (
	msgMalformedInput     = "Malformed input."
	msgInvalidCredentials = "Invalid credentials."
	msgNotAuthorized      = "Not authorized to perform this action."
	msgMissingCredentials = "Both username and password must be supplied."
	msgPasswordTooLong    = "Password is too long."
	msgUserExists         = "User already exists."
	msgUserCreated        = "User created successfully."
	msgMissingUsername    = "Username must be supplied."
	msgECGExists          = "An ECG with this ID already exists."
	msgMissingToken       = "Missing or invalid token."
	msgBodyTooLarge       = "Request body is too large."
	msgInternalError      = "Internal server error."
)

type ecgService interface {
	Login(ctx context.Context, username, password string) (string, error)
	AddUser(ctx context.Context, caller string, request *models.AddUserRequest) error
	DeleteUser(ctx context.Context, caller, username string) (int64, error)
	UploadECG(ctx context.Context, caller string, record *models.ECGRecord) (string, error)
	GetCrossings(ctx context.Context, caller, id string) (*models.CrossingsResponse, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

type Router struct {
	service         ecgService
	maxRequestBytes int64
}

type errorMapping struct {
	target  error
	status  int
	message string
}

var serviceErrors = []errorMapping{
	{service.ErrMalformedInput, http.StatusBadRequest, msgMalformedInput},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, msgInvalidCredentials},
	{service.ErrNotAuthorized, http.StatusUnauthorized, msgNotAuthorized},
	{service.ErrMissingCredentials, http.StatusBadRequest, msgMissingCredentials},
	{service.ErrPasswordTooLong, http.StatusBadRequest, msgPasswordTooLong},
	{service.ErrUserExists, http.StatusBadRequest, msgUserExists},
	{service.ErrMissingUsername, http.StatusBadRequest, msgMissingUsername},
	{service.ErrECGExists, http.StatusBadRequest, msgECGExists},
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{Error: message})
}

// writeServiceError answers with the status matching err. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(response http.ResponseWriter, request *http.Request, err error) {
	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			writeError(response, mapping.status, mapping.message)
			return
		}
	}

	logger.Log.Errorw(
		"request failed",
		"uri", request.RequestURI,
		"method", request.Method,
		"request_id", logger.RequestID(request.Context()),
		zap.Error(err),
	)
	writeError(response, http.StatusInternalServerError, msgInternalError)
}

var errEmptyBody = errors.New("request body is an empty JSON object")

// decodeBody decodes the JSON body into target, reading at most
// maxRequestBytes when that limit is set. An empty object or null
// carries no input and is rejected with errEmptyBody.
func (rt *Router) decodeBody(response http.ResponseWriter, request *http.Request, target interface{}) error {
	body := request.Body
	if rt.maxRequestBytes > 0 {
		body = http.MaxBytesReader(response, request.Body, rt.maxRequestBytes)
	}

	var raw json.RawMessage
	err := json.NewDecoder(body).Decode(&raw)
	if err == nil {
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) == nil && len(fields) == 0 {
			err = errEmptyBody
		}
	}
	if err == nil {
		err = json.Unmarshal(raw, target)
	}
	if err != nil {
		logger.Log.Debugln("Error decoding the request body: ", zap.Error(err))
	}

	return err
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

func callerOf(response http.ResponseWriter, request *http.Request) (string, bool) {
	caller, ok := auth.UserIDFromContext(request.Context())
	if !ok {
		writeError(response, http.StatusUnauthorized, msgMissingToken)
	}

	return caller, ok
}

func (rt *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := rt.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `rt.service.Ping()`: ", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgInternalError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

func (rt *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var credentials models.LoginRequest
	err := rt.decodeBody(response, request, &credentials)
	if isBodyTooLarge(err) {
		writeError(response, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}
	if err != nil {
		writeError(response, http.StatusBadRequest, msgMalformedInput)
		return
	}

	token, err := rt.service.Login(request.Context(), credentials.Username, credentials.Password)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.LoginResponse{AccessToken: token})
}

func (rt *Router) PutUser(response http.ResponseWriter, request *http.Request) {
	caller, ok := callerOf(response, request)
	if !ok {
		return
	}

	// A nil payload tells the service the body was missing or unusable.
	var payload *models.AddUserRequest
	var decoded models.AddUserRequest
	err := rt.decodeBody(response, request, &decoded)
	if isBodyTooLarge(err) {
		writeError(response, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}
	if err == nil {
		payload = &decoded
	}

	if err := rt.service.AddUser(request.Context(), caller, payload); err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: msgUserCreated})
}

func (rt *Router) DeleteUser(response http.ResponseWriter, request *http.Request) {
	caller, ok := callerOf(response, request)
	if !ok {
		return
	}

	deleted, err := rt.service.DeleteUser(request.Context(), caller, chi.URLParam(request, "username"))
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("%d records deleted successfully.", deleted),
	})
}

func (rt *Router) PutEcg(response http.ResponseWriter, request *http.Request) {
	caller, ok := callerOf(response, request)
	if !ok {
		return
	}

	// A nil payload tells the service the body was missing or unusable.
	var payload *models.ECGRecord
	var decoded models.ECGRecord
	err := rt.decodeBody(response, request, &decoded)
	if isBodyTooLarge(err) {
		writeError(response, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}
	if err == nil {
		payload = &decoded
	}

	id, err := rt.service.UploadECG(request.Context(), caller, payload)
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.UploadECGResponse{ID: id})
}

func (rt *Router) GetEcgcrossings(response http.ResponseWriter, request *http.Request) {
	caller, ok := callerOf(response, request)
	if !ok {
		return
	}

	id := chi.URLParam(request, "id")
	result, err := rt.service.GetCrossings(request.Context(), caller, id)
	if errors.Is(err, service.ErrECGNotFound) {
		writeError(response, http.StatusNotFound, fmt.Sprintf("ECG %s not found", id))
		return
	}
	if err != nil {
		writeServiceError(response, request, err)
		return
	}

	writeJSON(response, http.StatusOK, result)
}

func New(svc ecgService, authMiddleware authenticator, maxRequestBytes int64) *chi.Mux {
	rt := &Router{
		service:         svc,
		maxRequestBytes: maxRequestBytes,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/ping`, rt.GetPing)
	router.Post(`/login`, rt.PostLogin)

	router.Group(func(protected chi.Router) {
		protected.Use(authMiddleware.AuthenticateUser)
		protected.Put(`/user`, rt.PutUser)
		protected.Delete(`/user/`, rt.DeleteUser)
		protected.Delete(`/user/{username}`, rt.DeleteUser)
		protected.Put(`/ecg`, rt.PutEcg)
		protected.Get(`/ecg/{id}/crossings`, rt.GetEcgcrossings)
	})

	return router
}
