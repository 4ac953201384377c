package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quailsoft/transq/internal/common"
	"github.com/quailsoft/transq/internal/engine"
	"github.com/quailsoft/transq/internal/httpapi/middleware"
)

type submitReq struct {
	Text     string `json:"text" binding:"required"`
	Preset   string `json:"preset"`
	Priority string `json:"priority"`
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func (h *Handler) SubmitTranslation(c *gin.Context) {
	var req submitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	prio, err := engine.ParsePriority(req.Priority)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "unknown priority")
		return
	}

	res, err := h.Engine.Submit(c.Request.Context(), req.Text, req.Preset, prio)
	if err != nil {
		common.Fail(c, http.StatusUnprocessableEntity, 10003, err.Error())
		return
	}
	log.Printf("translation submitted client=%s request=%s outcome=%s priority=%s",
		middleware.ClientID(c), res.RequestID, res.Outcome, prio)
	common.OK(c, res)
}

func (h *Handler) CancelTranslation(c *gin.Context) {
	id := c.Param("request_id")
	if !h.Engine.Cancel(id) {
		common.Fail(c, http.StatusNotFound, 40402, "request not found or already finished")
		return
	}
	common.OK(c, gin.H{"request_id": id, "cancelled": true})
}

// GetTranslation serves finished requests from history. In-flight ids
// 404 here; callers follow the event stream for live progress.
func (h *Handler) GetTranslation(c *gin.Context) {
	id := c.Param("request_id")
	rec, err := h.History.GetByRequestID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40403, "translation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, rec)
}

func (h *Handler) ListTranslations(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := h.History.List(c.Request.Context(), limit, c.Query("before_id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"translations": recs})
}

func (h *Handler) GetStats(c *gin.Context) {
	common.OK(c, h.Engine.Stats())
}

func (h *Handler) ListPresets(c *gin.Context) {
	common.OK(c, gin.H{"presets": h.Presets.IDs()})
}
