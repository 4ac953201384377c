// Package common holds the JSON response envelope shared by every
// handler. code 0 means success; non-zero codes are stable and safe for
// clients to branch on.
package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "ok", Data: data})
}

func Fail(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Msg: msg})
}
