package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/legalmatch/internal/api/middleware"
	"github.com/yoockh/legalmatch/internal/utils"
)

// APIError is the error body of every endpoint. The error key carries the
// message callers show to users.
type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"error"`
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(utils.HTTPStatus(err), APIError{
		Code:    utils.CodeOf(err),
		Message: utils.PublicMessage(err),
	})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString(middleware.CtxUserID); s != "" {
		return s, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}
