package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quailsoft/transq/internal/auth"
	"github.com/quailsoft/transq/internal/common"
)

type tokenReq struct {
	ClientID string `json:"client_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// IssueToken exchanges the shared API secret for a short-lived JWT.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if h.Cfg.APISecret == "" {
		common.Fail(c, http.StatusForbidden, 40300, "token issuing disabled")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.Cfg.APISecret)) != 1 {
		common.Fail(c, http.StatusUnauthorized, 40102, "bad secret")
		return
	}
	token, err := auth.SignJWT(req.ClientID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}
	common.OK(c, gin.H{"token": token, "expires_in": int((24 * time.Hour).Seconds())})
}
