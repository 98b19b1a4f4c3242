package models

import (
	"encoding/json"
	"errors"
)

// Lead is one channel of an ECG recording.
type Lead struct {
	Name string `json:"name" validate:"required"`

	// NumSamples is the declared sample count as the client sent it. It is
	// informational: stored verbatim and never checked against len(Samples).
	NumSamples json.RawMessage `json:"num_samples,omitempty"`

	Samples []int64 `json:"samples"`
}

// ECGRecord is an uploaded recording. Owner is always set by the server.
type ECGRecord struct {
	ID    string `json:"id" validate:"required"`
	Owner string `json:"owner"`
	Date  int64  `json:"date"`
	Leads []Lead `json:"leads" validate:"required,dive"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

type AddUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UploadECGResponse struct {
	ID string `json:"id"`
}

type LeadCrossings struct {
	Name          string `json:"name"`
	ZeroCrossings int    `json:"zero_crossings"`
}

type CrossingsResponse struct {
	ID    string          `json:"id"`
	Date  int64           `json:"date"`
	Leads []LeadCrossings `json:"leads"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrUserAlreadyExists is returned by the storages when the username is taken.
var ErrUserAlreadyExists = errors.New("user already exists")

// ErrECGAlreadyExists is returned by the storages when the ECG id is taken.
var ErrECGAlreadyExists = errors.New("ECG already exists")
