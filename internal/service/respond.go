package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"edziennik-backend/internal/scrapers/edziennik"

	"github.com/go-playground/validator/v10"
)

const (
	errTypeBadRequest         = "BAD_REQUEST"
	errTypeNotFound           = "NOT_FOUND"
	errTypeUnauthenticated    = "UNAUTHENTICATED"
	errTypeInvalidCredentials = "INVALID_CREDENTIALS"
	errTypeBadGateway         = "BAD_GATEWAY"
	errTypeTimeout            = "GATEWAY_TIMEOUT"
	errTypeServerError        = "SERVER_ERROR"
)

// maxBodySize is far above any legitimate request, a push subscription
// is a few hundred bytes.
const maxBodySize = 64 << 10

type errorBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type envelope struct {
	StatusCode int        `json:"statusCode"`
	Data       any        `json:"data,omitempty"`
	Error      *errorBody `json:"error,omitempty"`
}

func writeJson(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data any) {
	writeJson(w, http.StatusOK, envelope{StatusCode: http.StatusOK, Data: data})
}

func writeError(w http.ResponseWriter, status int, errType, description string) {
	writeJson(w, status, envelope{
		StatusCode: status,
		Error:      &errorBody{Type: errType, Description: description},
	})
}

// writePortalError answers with the status matching a portal error.
func writePortalError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, edziennik.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, errTypeInvalidCredentials, "the portal rejected the credentials")
	case errors.Is(err, edziennik.ErrParse):
		writeError(w, http.StatusBadGateway, errTypeBadGateway, "the portal returned an unexpected page")
	case errors.Is(err, edziennik.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, errTypeTimeout, "the portal did not respond in time")
	case errors.Is(err, edziennik.ErrNetwork):
		writeError(w, http.StatusBadGateway, errTypeBadGateway, "the portal is unreachable")
	default:
		writeError(w, http.StatusInternalServerError, errTypeServerError, "internal error")
	}
}

// decode reads a json body into T, rejecting unknown fields, and validates
// it. It writes the error response itself and returns false on failure.
func decode[T any](s Service, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&req)
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("empty body")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, errTypeBadRequest, fmt.Sprintf("malformed json input: %s", err))
		return req, false
	}

	err = s.validate.Struct(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, errTypeBadRequest, describeValidation(err))
		return req, false
	}
	return req, true
}

func describeValidation(err error) string {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err.Error()
	}
	problems := make([]string, len(invalid))
	for i, field := range invalid {
		problems[i] = fmt.Sprintf("argument '%s' failed on '%s'", field.Field(), field.Tag())
	}
	return strings.Join(problems, ", ")
}
