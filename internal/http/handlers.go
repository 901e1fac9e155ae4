package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/service"
)

// ParentHandler agrupa las vistas protegidas de la familia: inicio, niñeras y solicitudes.
type ParentHandler struct {
	logger      *zap.Logger
	users       *service.UserService
	babysitters *service.BabysitterService
	requests    *service.RequestService
}

func NewParentHandler(
	logger *zap.Logger,
	users *service.UserService,
	babysitters *service.BabysitterService,
	requests *service.RequestService,
) *ParentHandler {
	return &ParentHandler{
		logger:      logger,
		users:       users,
		babysitters: babysitters,
		requests:    requests,
	}
}

// Index maneja GET /.
func (h *ParentHandler) Index(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	summary, err := h.requests.Summary(c.Request.Context(), user)
	if err != nil {
		h.upstreamError(c, err, "load summary failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "summary": summary})
}

// ListBabysitters maneja GET /babysitters.
func (h *ParentHandler) ListBabysitters(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	list, err := h.babysitters.List(c.Request.Context(), claims.UserID)
	if err != nil {
		h.upstreamError(c, err, "list babysitters failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"babysitters": list})
}

// AddBabysitter maneja POST /babysitters.
func (h *ParentHandler) AddBabysitter(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name"`
		Mobile    string `json:"mobile" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	b, err := h.babysitters.Add(c.Request.Context(), user, service.AddBabysitterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanLimit):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":   err.Error(),
				"upgrade": "/upgrade",
				"notice": domain.Notice{
					Title:       "Upgrade to add more babysitters",
					Description: "The free plan includes up to 3 babysitters.",
					Variant:     domain.NoticeDefault,
				},
			})
		case errors.Is(err, service.ErrMobileInvalid), errors.Is(err, service.ErrBabysitterName):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrBabysitterExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.upstreamError(c, err, "add babysitter failed")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"babysitter": b})
}

// CreateRequest maneja POST /create-request.
func (h *ParentHandler) CreateRequest(c *gin.Context) {
	var req struct {
		Date          string   `json:"date" binding:"required"`
		TimeRange     string   `json:"time_range" binding:"required"`
		Notes         string   `json:"notes"`
		BabysitterIDs []string `json:"babysitter_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sent, err := h.requests.Create(c.Request.Context(), user, service.CreateRequestInput{
		Date:          req.Date,
		TimeRange:     req.TimeRange,
		Notes:         req.Notes,
		BabysitterIDs: req.BabysitterIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDate),
			errors.Is(err, service.ErrTimeRange),
			errors.Is(err, service.ErrNoBabysitters),
			errors.Is(err, service.ErrUnknownBabysitter):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("create request failed", zap.Error(err), zap.Int("created", len(sent)))
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    "could not send every request",
				"requests": sent,
				"notice":   domain.Notice{Title: "Failed to send request. Please try again.", Variant: domain.NoticeError},
			})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"requests": sent,
		"notice":   domain.Notice{Title: "Request sent", Description: "Share the links with your babysitters.", Variant: domain.NoticeSuccess},
	})
}

// ListRequests maneja GET /requests.
func (h *ParentHandler) ListRequests(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	groups, err := h.requests.Dashboard(c.Request.Context(), claims.UserID)
	if err != nil {
		h.upstreamError(c, err, "list requests failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *ParentHandler) currentUser(c *gin.Context) (domain.User, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return domain.User{}, false
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return domain.User{}, false
		}
		h.logger.Error("load user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load account"})
		return domain.User{}, false
	}
	return user, true
}

// upstreamError responde 502 para fallos del almacén externo.
func (h *ParentHandler) upstreamError(c *gin.Context, err error, message string) {
	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{
		"error":  "upstream store unavailable",
		"notice": domain.Notice{Title: "Something went wrong. Please try again.", Variant: domain.NoticeError},
	})
}
