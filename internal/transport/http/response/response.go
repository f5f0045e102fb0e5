package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                  = 0
	CodeBadRequest          = 40000
	CodeMessageEmpty        = 40001
	CodeMessageTooLong      = 40002
	CodeUnsupportedFile     = 40003
	CodeFileTooLarge        = 40004
	CodeUnauthorized        = 40100
	CodeForbidden           = 40300
	CodeDocumentNotFound    = 40401
	CodeInternalServer      = 50000
	CodeServiceUnavailable  = 50300
	CodeIngestionNotStarted = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Accepted reports work that continues in the background.
func Accepted(c *gin.Context, message string, data interface{}) {
	c.JSON(202, APIResponse{
		Code:    CodeOK,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
