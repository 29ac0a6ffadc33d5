package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code int         `json:"code"` // 0:成功, -1:失败
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

const (
	CodeSuccess = 0
	CodeFail    = -1
)

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: CodeSuccess,
		Msg:  "success",
		Data: data,
	})
}

// Fail reports a failure with HTTP 200 and code -1.
func Fail(c *gin.Context, msg string) {
	FailWithStatus(c, http.StatusOK, msg)
}

func FailWithStatus(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{
		Code: CodeFail,
		Msg:  msg,
	})
}

// FailWithData is FailWithStatus carrying a payload, e.g. a failed analysis.
func FailWithData(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{
		Code: CodeFail,
		Msg:  msg,
		Data: data,
	})
}
