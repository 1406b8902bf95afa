package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"trackit/internal/handler"
	"trackit/internal/realtime"
	"trackit/pkg/otel"
	"trackit/pkg/trace"
)

// ReadyCheck is one dependency checked by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Auth     *handler.AuthHandler
	Projects *handler.ProjectHandler
	Tasks    *handler.TaskHandler
	// Board serves the /kanbanHub websocket.
	Board http.Handler

	Authenticator  realtime.Authenticator
	ReadyChecks    []ReadyCheck
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Router struct {
	Engine  *gin.Engine
	handler http.Handler
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), trace.GinMiddleware(), otel.GinMiddleware(), RequestLogger(d.Logger), Metrics())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, rc := range d.ReadyChecks {
			if err := rc.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": rc.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Board != nil {
		r.GET("/kanbanHub", gin.WrapH(d.Board))
	}

	api := r.Group("/api")

	// Public
	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/login", d.Auth.Login)

	// Protected
	auth := api.Group("/")
	auth.Use(AuthMiddleware(d.Authenticator))
	{
		auth.GET("/projects", d.Projects.ListProjects)
		auth.GET("/projects/:id", d.Projects.GetProject)
		auth.GET("/projects/:id/board", d.Projects.GetBoard)
		auth.POST("/projects", d.Projects.CreateProject)
		auth.PUT("/projects/:id", d.Projects.UpdateProject)
		auth.DELETE("/projects/:id", d.Projects.DeleteProject)

		auth.POST("/tasks", d.Tasks.CreateTask)
		auth.GET("/tasks/:id", d.Tasks.GetTask)
		auth.PUT("/tasks/:id/status", d.Tasks.UpdateTaskStatus)
		auth.PUT("/tasks/:id", d.Tasks.UpdateTask)
		auth.DELETE("/tasks/:id", d.Tasks.DeleteTask)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderName},
		ExposedHeaders:   []string{trace.HeaderName},
		AllowCredentials: true,
	})

	return &Router{Engine: r, handler: c.Handler(r)}
}

// Handler is the engine wrapped with CORS.
func (r *Router) Handler() http.Handler {
	return r.handler
}
