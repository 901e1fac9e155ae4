package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPRecorder registra status y latencia de cada respuesta.
type HTTPRecorder interface {
	RecordHTTP(statusCode int, latency time.Duration)
}

type RouterDeps struct {
	Guard     *Guard
	Users     *UserHandler
	Parents   *ParentHandler
	Responder *ResponderHandler
	Shell     *ShellHandler

	// PublicLimiter limita por IP las rutas sin sesión. Opcional.
	PublicLimiter *IPRateLimiter
	Recorder      HTTPRecorder
	Metrics       http.Handler
	Health        func(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger, deps.Recorder), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	public := r.Group("")
	if deps.PublicLimiter != nil {
		public.Use(deps.PublicLimiter.Middleware())
	}
	public.GET("/login", deps.Users.LoginView)
	public.POST("/login", deps.Users.Login)
	public.GET("/signup", deps.Users.SignupView)
	public.POST("/signup", deps.Users.Signup)
	public.POST("/logout", deps.Users.Logout)
	public.POST("/session/activity", deps.Users.Activity)
	public.GET("/app/layout", deps.Shell.Layout)
	public.GET("/confirm_upgrade", deps.Users.ConfirmUpgrade)

	respond := public.Group("/r/:requestId")
	respond.GET("", deps.Responder.Show)
	respond.POST("/verify", deps.Responder.Verify)
	respond.POST("/respond", deps.Responder.Respond)

	// La raíz manda a los anónimos a registrarse; el resto a login.
	r.GET("/", deps.Guard.Require(signupPath), deps.Parents.Index)

	protected := r.Group("", deps.Guard.Require(loginPath))
	protected.GET("/me", deps.Users.Me)
	protected.POST("/upgrade", deps.Users.RequestUpgrade)
	protected.GET("/family", deps.Users.GetFamily)
	protected.PUT("/family", deps.Users.UpdateFamily)
	protected.GET("/babysitters", deps.Parents.ListBabysitters)
	protected.POST("/babysitters", deps.Parents.AddBabysitter)
	protected.POST("/create-request", deps.Parents.CreateRequest)
	protected.GET("/requests", deps.Parents.ListRequests)

	return r
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger, recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
		if recorder != nil {
			recorder.RecordHTTP(c.Writer.Status(), latency)
		}
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
