package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Chative-order-agent/server/internal/agent/graph"
	"github.com/Chative-order-agent/server/internal/agent/model"
	errx "github.com/Chative-order-agent/server/internal/core/error"
	"github.com/Chative-order-agent/server/internal/order"
)

type Handler struct {
	runner graph.Runner
}

func NewHandler(runner graph.Runner) *Handler {
	return &Handler{runner: runner}
}

type startRequest struct {
	Location string `json:"location"`
}

// chatRequest accepts the orderId/input field names of older clients.
type chatRequest struct {
	ConversationID string `json:"conversationId"`
	OrderID        string `json:"orderId"`
	Message        string `json:"message"`
	Input          string `json:"input"`
	Location       string `json:"location"`
}

func (r chatRequest) toModel() model.ChatRequest {
	id := r.ConversationID
	if id == "" {
		id = r.OrderID
	}
	msg := r.Message
	if strings.TrimSpace(msg) == "" {
		msg = r.Input
	}
	return model.ChatRequest{ConversationID: id, Message: msg, Location: r.Location}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errx.StatusOf(err), gin.H{"error": errx.MessageOf(err)})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errx.InvalidInput("invalid request"))
		return
	}
	s, err := h.runner.Start(c.Request.Context(), req.Location)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"conversationId": s.ID,
		"orderId":        s.ID,
		"messages":       s.Messages,
	})
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errx.InvalidInput("invalid request"))
		return
	}
	resp, err := h.runner.Chat(c.Request.Context(), req.toModel())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	s, err := h.runner.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversationId": s.ID,
		"order":          s.Order,
		"messages":       s.Messages,
		"violations":     order.Outstanding(&s.Order),
		"total":          order.Total(&s.Order),
	})
}
