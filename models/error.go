package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// HealthCheckResponse is returned by the /health route
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}

// MessageResponse is the body of simple success responses
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
