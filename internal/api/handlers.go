// Package api exposes the triage engine and ticket service over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/support-triage/internal/models"
	"github.com/xaenox/support-triage/internal/ticket"
	"github.com/xaenox/support-triage/internal/triage"
	"go.uber.org/zap"
)

type Handler struct {
	engine  *triage.Engine
	tickets *ticket.Service
	logger  *zap.Logger
}

func NewHandler(engine *triage.Engine, tickets *ticket.Service, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, tickets: tickets, logger: logger}
}

type startRequest struct {
	Query       string `json:"query" binding:"required"`
	ClientEmail string `json:"clientEmail" binding:"omitempty,email"`
}

type continueRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid"`
	Answer         string `json:"answer" binding:"required"`
}

type submitRequest struct {
	ConversationID string `json:"conversationId" binding:"required,uuid"`
	Category       string `json:"category" binding:"required,oneof=website email social admin"`
	ClientEmail    string `json:"clientEmail" binding:"omitempty,email"`
	Summary        string `json:"summary" binding:"required,min=3"`
}

// turnResponse is the body of both triage endpoints. ConversationID is only
// set when a conversation is started.
type turnResponse struct {
	ConversationID string           `json:"conversationId,omitempty"`
	Category       models.Category  `json:"category,omitempty"`
	FollowUps      []string         `json:"followUps"`
	Stop           bool             `json:"stop"`
	Summary        *string          `json:"summary"`
	Messages       []models.Message `json:"messages"`
}

func newTurnResponse(res *triage.TurnResult) turnResponse {
	followUps := res.Decision.FollowUps
	if followUps == nil {
		followUps = []string{}
	}
	var summary *string
	if res.Decision.Summary != "" {
		s := res.Decision.Summary
		summary = &s
	}
	return turnResponse{
		Category:  res.Decision.Category,
		FollowUps: followUps,
		Stop:      res.Decision.Stop,
		Summary:   summary,
		Messages:  res.Messages,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) StartTriage(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.engine.StartTurn(c.Request.Context(), req.Query, req.ClientEmail)
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := newTurnResponse(res)
	body.ConversationID = res.Conversation.ID
	c.JSON(http.StatusOK, body)
}

func (h *Handler) ContinueTriage(c *gin.Context) {
	var req continueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.engine.ContinueTurn(c.Request.Context(), req.ConversationID, req.Answer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(res))
}

func (h *Handler) ListMessages(c *gin.Context) {
	conv, messages, err := h.engine.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": messages})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SubmitTicket(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	t, err := h.tickets.Submit(c.Request.Context(), ticket.SubmitRequest{
		ConversationID: req.ConversationID,
		Category:       models.Category(req.Category),
		ClientEmail:    req.ClientEmail,
		Summary:        req.Summary,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

func (h *Handler) GetTicket(c *gin.Context) {
	t, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}
