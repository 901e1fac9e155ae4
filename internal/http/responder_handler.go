package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/phone"
	"sitter-link/internal/responder"
	"sitter-link/internal/service"
)

// ResponderHandler expone el flujo público /r/:requestId. Cada request HTTP
// arma su propio Flow; el token de respuesta transporta la verificación.
type ResponderHandler struct {
	logger   *zap.Logger
	store    responder.Store
	jwtServ  *service.JWTService
	limiter  service.VerifyLimiter
	requests *service.RequestService
	observer responder.Observer
}

func NewResponderHandler(
	logger *zap.Logger,
	store responder.Store,
	jwtServ *service.JWTService,
	limiter service.VerifyLimiter,
	requests *service.RequestService,
	observer responder.Observer,
) *ResponderHandler {
	return &ResponderHandler{
		logger:   logger,
		store:    store,
		jwtServ:  jwtServ,
		limiter:  limiter,
		requests: requests,
		observer: observer,
	}
}

// Show maneja GET /r/:requestId: la pantalla inicial pide el móvil.
func (h *ResponderHandler) Show(c *gin.Context) {
	flow := responder.NewFlow(h.logger, h.store, c.Param("requestId"), h.observer)
	defer flow.Close()
	c.JSON(http.StatusOK, gin.H{"view": flow.View()})
}

// Verify maneja POST /r/:requestId/verify.
func (h *ResponderHandler) Verify(c *gin.Context) {
	var req struct {
		Mobile string `json:"mobile" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	requestID := c.Param("requestId")
	if h.limiter != nil && !h.limiter.Allow(requestID) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":  "too many requests",
			"notice": domain.Notice{Title: "Too many attempts", Description: "Please wait a few minutes and try again.", Variant: domain.NoticeError},
		})
		return
	}

	flow := responder.NewFlow(h.logger, h.store, requestID, h.observer)
	defer flow.Close()

	if err := flow.Verify(c.Request.Context(), req.Mobile); err != nil {
		h.respondFlowError(c, flow, err)
		return
	}

	token, err := h.jwtServ.IssueResponderToken(requestID, phone.Normalize(req.Mobile))
	if err != nil {
		h.logger.Error("issue responder token failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": flow.View(), "token": token})
}

// Respond maneja POST /r/:requestId/respond. Re-verifica con el móvil del
// token antes de enviar, así el orden verificar→responder se mantiene.
func (h *ResponderHandler) Respond(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Response string `json:"response" binding:"required"`
		Comments string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	requestID := c.Param("requestId")
	claims, err := h.jwtServ.ParseResponderToken(req.Token, requestID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "verification required", "redirect": "/r/" + requestID})
		return
	}

	flow := responder.NewFlow(h.logger, h.store, requestID, h.observer)
	defer flow.Close()

	if err := flow.Verify(c.Request.Context(), claims.Mobile); err != nil {
		h.respondFlowError(c, flow, err)
		return
	}
	if err := flow.Submit(c.Request.Context(), req.Response, req.Comments); err != nil {
		h.respondFlowError(c, flow, err)
		return
	}

	if submitted := flow.Request(); submitted != nil && h.requests != nil {
		h.requests.NotifyResponse(c.Request.Context(), *submitted)
	}
	c.JSON(http.StatusOK, gin.H{"view": flow.View(), "notice": responder.NoticeFor(nil)})
}

func (h *ResponderHandler) respondFlowError(c *gin.Context, flow *responder.Flow, err error) {
	notice := responder.NoticeFor(err)
	body := gin.H{"error": err.Error(), "notice": notice, "view": flow.View()}
	switch {
	case errors.Is(err, responder.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, responder.ErrInvalidMobile):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, responder.ErrSubmitFailed):
		body["error"] = responder.MsgSubmitFailed
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, responder.ErrAlreadySubmitted), errors.Is(err, responder.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, responder.ErrFlowClosed):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		h.logger.Error("responder flow failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process response"})
	}
}
