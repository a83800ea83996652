package models

// ErrorResponse is the failure envelope every endpoint returns:
// {"success": false, "message": ..., "error": ...}.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
