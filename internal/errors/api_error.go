package errors

import "github.com/gin-gonic/gin"

// APIError is the JSON body of every error response.
type APIError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]interface{}) *APIError {
	return &APIError{
		Error:   message,
		Details: details,
	}
}

// abort writes an APIError with the given status and stops the handler chain.
func abort(c *gin.Context, status int, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, NewAPIError(message, details))
}
