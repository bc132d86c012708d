package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/deepresearch"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/normalization"
	"github.com/yungbote/ragcore/internal/tenant"
)

type DeepResearchHandler struct {
	log   *logger.Logger
	agent *deepresearch.Agent
}

func NewDeepResearchHandler(log *logger.Logger, agent *deepresearch.Agent) *DeepResearchHandler {
	return &DeepResearchHandler{log: log.With("handler", "DeepResearchHandler"), agent: agent}
}

type startResearchRequest struct {
	Question string `json:"question" binding:"required"`
}

// POST /deep-research/start
func (h *DeepResearchHandler) Start(c *gin.Context) {
	t, ok := tenant.FromContext(c.Request.Context())
	if !ok || !t.Valid() {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	var req startResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	question := normalization.ParseInputString(req.Question)
	session, err := h.agent.Start(c.Request.Context(), t.UserID, t.SpaceID, question)
	if err != nil {
		RespondError(c, apperr.Internal("start research session: %v", err))
		return
	}
	RespondOK(c, session)
}

type askResearchRequest struct {
	SessionID   string   `json:"session_id" binding:"required"`
	Message     string   `json:"message"`
	SpaceID     string   `json:"space_id"`
	LLMProvider string   `json:"llm_provider"`
	ForceWeb    bool     `json:"force_web"`
	URLs        []string `json:"urls"`
}

// POST /deep-research/ask
func (h *DeepResearchHandler) Ask(c *gin.Context) {
	if _, ok := tenant.FromContext(c.Request.Context()); !ok {
		RespondError(c, apperr.Forbidden("tenant context missing"))
		return
	}
	var req askResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		RespondError(c, apperr.Validation("invalid session_id"))
		return
	}
	// space_id and llm_provider are accepted for forward-compatibility with
	// per-ask tenant/provider overrides; the session already carries its
	// space from Start, and provider selection stays process-wide (set via
	// config.Providers.GeneratorProvider) until per-request routing is
	// needed.
	message := normalization.ParseInputString(req.Message)
	result, err := h.agent.Ask(c.Request.Context(), sessionID, message, req.ForceWeb, req.URLs)
	if err != nil {
		RespondError(c, apperr.Internal("run research step: %v", err))
		return
	}
	RespondOK(c, result)
}
