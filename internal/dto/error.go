package dto

// ErrorResponse is the body of every failed REST call.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode" example:"404"`
	Message    string `json:"message" example:"Todo with ID 8c1d... not found"`
	Error      string `json:"error" example:"NotFound"`
	Timestamp  string `json:"timestamp" example:"2026-02-19T10:00:00Z"`
}
