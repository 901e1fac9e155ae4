package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/service"
)

// UserHandler mantiene dependencias para login, registro y cuenta del padre.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
	monitor  *service.SessionMonitor
	guard    *Guard
}

func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, monitor *service.SessionMonitor, guard *Guard) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
		monitor:  monitor,
		guard:    guard,
	}
}

// LoginView maneja GET /login.
func (h *UserHandler) LoginView(c *gin.Context) {
	body := gin.H{"view": "login", "fields": []string{"email", "password"}, "signup": signupPath}
	if c.Query("notice") == noticeQueryExpired {
		body["notice"] = domain.SessionExpiredNotice
	}
	c.JSON(http.StatusOK, body)
}

// SignupView maneja GET /signup.
func (h *UserHandler) SignupView(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"view":   "signup",
		"fields": []string{"email", "password", "first_name", "last_name", "mobile"},
		"login":  loginPath,
	})
}

// Signup maneja POST /signup.
func (h *UserHandler) Signup(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Mobile    string `json:"mobile"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Signup(c.Request.Context(), service.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword),
			errors.Is(err, service.ErrMobileInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("signup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
		}
		return
	}

	h.startSession(c, http.StatusCreated, user)
}

// Login maneja POST /login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	h.startSession(c, http.StatusOK, user)
}

func (h *UserHandler) startSession(c *gin.Context, status int, user domain.User) {
	session, err := h.monitor.Begin(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("begin session failed", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}
	token, err := h.jwtServ.IssueAccessToken(user, session)
	if err != nil {
		h.logger.Error("issue access token failed", zap.Error(err))
		_ = h.monitor.End(c.Request.Context(), session.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}
	h.guard.setCookie(c, token)
	c.JSON(status, gin.H{
		"user":       user,
		"token":      token,
		"expires_in": int(h.monitor.Timeout().Seconds()),
	})
}

// Logout maneja POST /logout. Siempre limpia la cookie.
func (h *UserHandler) Logout(c *gin.Context) {
	if token := tokenFromRequest(c); token != "" {
		if claims, err := h.jwtServ.ParseAccessToken(token); err == nil {
			if err := h.monitor.End(c.Request.Context(), claims.SessionID); err != nil {
				h.logger.Warn("end session failed", zap.Error(err), zap.String("session_id", claims.SessionID))
			}
		}
	}
	h.guard.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"redirect": loginPath, "replace": true})
}

// Activity maneja POST /session/activity: publica un pulso y responde sin esperar.
func (h *UserHandler) Activity(c *gin.Context) {
	token := tokenFromRequest(c)
	claims, err := h.jwtServ.ParseAccessToken(token)
	if token == "" || err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	queued := h.monitor.Pulse(claims.SessionID)
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

// Me maneja GET /me.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondUserError(c, err, "could not load account")
		return
	}
	session, _ := GetSession(c)
	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"session": gin.H{
			"issued_at":     session.IssuedAt,
			"last_activity": session.LastActivity,
			"expires_at":    session.ExpiresAt(h.monitor.Timeout()),
		},
	})
}

// GetFamily maneja GET /family.
func (h *UserHandler) GetFamily(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	family, err := h.userServ.GetFamily(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondUserError(c, err, "could not load family")
		return
	}
	c.JSON(http.StatusOK, gin.H{"family": family})
}

// UpdateFamily maneja PUT /family.
func (h *UserHandler) UpdateFamily(c *gin.Context) {
	var req domain.Family
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	claims, _ := GetAuthClaims(c)
	family, err := h.userServ.UpdateFamily(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrMobileInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondUserError(c, err, "could not update family")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"family": family,
		"notice": domain.Notice{Title: "Family profile saved", Variant: domain.NoticeSuccess},
	})
}

// RequestUpgrade maneja POST /upgrade.
func (h *UserHandler) RequestUpgrade(c *gin.Context) {
	claims, _ := GetAuthClaims(c)
	link, err := h.userServ.RequestUpgrade(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyPremium) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.respondUserError(c, err, "could not start upgrade")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"link": link,
		"notice": domain.Notice{
			Title:       "Check your email",
			Description: "We sent you a link to confirm the upgrade.",
			Variant:     domain.NoticeDefault,
		},
	})
}

// ConfirmUpgrade maneja GET /confirm_upgrade?token=.
func (h *UserHandler) ConfirmUpgrade(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	user, err := h.userServ.ConfirmUpgrade(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrUpgradeTokenInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondUserError(c, err, "could not confirm upgrade")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":   user.Plan,
		"notice": domain.Notice{Title: "Upgrade complete", Description: "Your family is now on the premium plan.", Variant: domain.NoticeSuccess},
	})
}

func (h *UserHandler) respondUserError(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	h.logger.Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
