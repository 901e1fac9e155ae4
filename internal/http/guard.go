package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
	"sitter-link/internal/service"
)

const (
	authClaimsKey     = "auth_claims"
	authSessionKey    = "auth_session"
	sessionCookieName = "session_token"

	loginPath  = "/login"
	signupPath = "/signup"

	noticeQueryExpired = "session_expired"
)

// Guard valida el token de acceso y la sesión detrás de cada vista protegida.
type Guard struct {
	logger  *zap.Logger
	jwt     *service.JWTService
	monitor *service.SessionMonitor
	secure  bool
}

func NewGuard(logger *zap.Logger, jwt *service.JWTService, monitor *service.SessionMonitor, secureCookie bool) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger, jwt: jwt, monitor: monitor, secure: secureCookie}
}

// Require deja pasar solo a usuarios con sesión viva; al resto lo envía a
// redirectTo reemplazando la entrada del historial. Una sesión expirada
// siempre va a /login con el aviso de expiración.
func (g *Guard) Require(redirectTo string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.jwt == nil || g.monitor == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		token := tokenFromRequest(c)
		if token == "" {
			g.deny(c, redirectTo, nil)
			return
		}
		claims, err := g.jwt.ParseAccessToken(token)
		if err != nil {
			g.clearCookie(c)
			g.deny(c, redirectTo, nil)
			return
		}

		session, err := g.monitor.Check(c.Request.Context(), claims.SessionID)
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			g.clearCookie(c)
			notice := domain.SessionExpiredNotice
			g.deny(c, loginPath, &notice)
			return
		case errors.Is(err, service.ErrSessionNotFound):
			g.clearCookie(c)
			g.deny(c, redirectTo, nil)
			return
		case err != nil:
			g.logger.Error("session check failed", zap.Error(err), zap.String("session_id", claims.SessionID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not check session"})
			c.Abort()
			return
		}
		if session.UserID != claims.UserID {
			g.logger.Warn("session user mismatch", zap.String("session_id", session.ID))
			g.deny(c, redirectTo, nil)
			return
		}

		c.Set(authClaimsKey, claims)
		c.Set(authSessionKey, session)
		c.Next()
	}
}

// Identify resuelve la sesión del request sin refrescarla.
func (g *Guard) Identify(c *gin.Context) (service.Claims, domain.Session, bool) {
	if g.jwt == nil || g.monitor == nil {
		return service.Claims{}, domain.Session{}, false
	}
	token := tokenFromRequest(c)
	if token == "" {
		return service.Claims{}, domain.Session{}, false
	}
	claims, err := g.jwt.ParseAccessToken(token)
	if err != nil {
		return service.Claims{}, domain.Session{}, false
	}
	session, err := g.monitor.Lookup(c.Request.Context(), claims.SessionID)
	if err != nil || session.UserID != claims.UserID {
		return service.Claims{}, domain.Session{}, false
	}
	return claims, session, true
}

// deny corta la cadena. Los navegadores reciben 302 (reemplaza la entrada);
// los clientes API reciben 401 con la ruta y replace=true.
func (g *Guard) deny(c *gin.Context, redirectTo string, notice *domain.Notice) {
	if wantsHTML(c) {
		target := redirectTo
		if notice != nil {
			target += "?notice=" + noticeQueryExpired
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
		return
	}
	body := gin.H{
		"error":    "unauthorized",
		"redirect": redirectTo,
		"replace":  true,
	}
	if notice != nil {
		body["error"] = "session expired"
		body["notice"] = notice
	}
	c.JSON(http.StatusUnauthorized, body)
	c.Abort()
}

// setCookie deja una cookie de sesión del navegador; la inactividad la controla el monitor.
func (g *Guard) setCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, 0, "/", "", g.secure, true)
}

func (g *Guard) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", g.secure, true)
}

func tokenFromRequest(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

func GetSession(c *gin.Context) (domain.Session, bool) {
	val, ok := c.Get(authSessionKey)
	if !ok {
		return domain.Session{}, false
	}
	session, ok := val.(domain.Session)
	return session, ok
}
