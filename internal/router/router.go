package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/support-desk/api"
	"github.com/psds-microservice/support-desk/internal/handler"
	"github.com/psds-microservice/support-desk/internal/logging"
	"github.com/psds-microservice/support-desk/internal/middleware"
	"github.com/psds-microservice/support-desk/internal/session"
	"github.com/psds-microservice/support-desk/internal/validation"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers — обработчики всех групп маршрутов.
type Handlers struct {
	Health    *handler.HealthHandler
	Submit    *handler.SubmitHandler
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Admin     *handler.AdminHandler
	API       *handler.APIHandler
}

type Options struct {
	SecretKey       string
	Secure          bool
	CSRF            bool
	LoginPerMinute  int
	VerifyPerMinute int
	MaxBodyBytes    int64
	// TrustedProxies — прокси, которым можно доверять X-Forwarded-For; пусто — клиентом считается peer сокета.
	TrustedProxies []string
}

// New собирает gin-движок со всеми маршрутами и оборачивает его в CSRF и лимит тела.
func New(h Handlers, opts Options) http.Handler {
	validation.RegisterGin()

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		slog.Warn("router: invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	if opts.MaxBodyBytes > 0 {
		r.MaxMultipartMemory = opts.MaxBodyBytes
	}
	r.Use(gin.Recovery(), logging.GinLogger())

	r.GET(paths.PathHealth, h.Health.Health)
	r.GET(paths.PathReady, h.Health.Ready)
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})
	r.GET("/favicon.ico", handler.Favicon)

	app := r.Group("/", session.Middleware(opts.SecretKey, opts.Secure))
	{
		app.GET("/", h.Submit.Form)
		app.POST("/", h.Submit.Submit)

		login := middleware.NewIPRateLimiter(opts.LoginPerMinute)
		verify := middleware.NewIPRateLimiter(opts.VerifyPerMinute)
		auth := app.Group("/auth")
		auth.GET("/login", h.Auth.LoginForm)
		auth.POST("/login", login.Middleware(), h.Auth.Login)
		auth.GET("/verify", h.Auth.VerifyForm)
		auth.POST("/verify", verify.Middleware(), h.Auth.Verify)
		auth.GET("/logout", h.Auth.Logout)

		app.GET("/my-tickets", middleware.RequireUser(), h.Dashboard.MyTickets)
		app.GET("/track/:ticket_id", h.Dashboard.Track)

		app.GET("/tickets", h.Admin.Tickets)
		app.POST("/tickets", h.Admin.Login)
		app.GET("/admin/logout", h.Admin.Logout)
		admin := app.Group("/", middleware.RequireAdmin())
		admin.GET("/ticket/:ticket_id", h.Admin.Detail)
		admin.POST("/close_ticket/:ticket_id", h.Admin.Close)
		admin.POST("/delete_ticket/:ticket_id", h.Admin.Delete)

		v := app.Group("/api")
		v.POST("/reply", h.API.Reply)
		v.GET("/ticket/:ticket_id/messages", h.API.Messages)
	}

	var out http.Handler = r
	if opts.CSRF {
		out = middleware.CSRF(opts.SecretKey, opts.Secure, "/api/")(out)
	}
	// Лимит тела снаружи CSRF: токен из формы читается уже из ограниченного тела.
	if opts.MaxBodyBytes > 0 {
		out = middleware.BodyLimit(opts.MaxBodyBytes+1<<20, r.MaxMultipartMemory)(out)
	}
	return out
}
