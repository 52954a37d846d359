package response

import "github.com/gin-gonic/gin"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the envelope of every JSON body the API returns
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     StatusSuccess,
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps a message in an error envelope
func Error(statusCode int, err string) Response {
	return Response{
		Status:     StatusError,
		StatusCode: statusCode,
		Error:      err,
	}
}

// JSON writes data with statusCode in a success envelope.
func JSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Success(statusCode, data))
}

// Fail writes an error envelope.
func Fail(c *gin.Context, statusCode int, err string) {
	c.JSON(statusCode, Error(statusCode, err))
}

// Abort writes an error envelope and stops the handler chain.
func Abort(c *gin.Context, statusCode int, err string) {
	c.AbortWithStatusJSON(statusCode, Error(statusCode, err))
}
