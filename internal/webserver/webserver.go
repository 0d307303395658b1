// Package webserver hosts the admin REST API: echo instance, JWT
// authentication, payload validation and route registration helpers.
package webserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jeffmoIA/netdesk/config"
)

// WebContext is the slice of the application the web layer needs.
type WebContext interface {
	DB() *gorm.DB
	Config() *config.AppConfig
}

// CustomValidator adapts validator/v10 to echo's Validator interface.
type CustomValidator struct {
	validate *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx WebContext
}

var server *WebServer

// Init builds the echo instance and the authenticated /api/v1 group.
// Route registration happens afterwards through the Api* helpers.
func Init(appCtx WebContext) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("db", appCtx.DB())
			c.Set("appctx", appCtx)
			return next(c)
		}
	})

	api := e.Group("/api/v1")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(appCtx.Config().Web.JwtSecret),
		Skipper: func(c echo.Context) bool {
			// Login is the only unauthenticated API route.
			return strings.HasPrefix(c.Path(), "/api/v1/auth/login")
		},
	}))

	server = &WebServer{root: e, api: api, appCtx: appCtx}
}

// Listen blocks serving the admin API.
func Listen() error {
	cfg := server.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.L().Info("admin api listening", zap.String("addr", addr))
	return server.root.Start(addr)
}

// Shutdown stops the server, releasing the listener.
func Shutdown() error {
	return server.root.Close()
}

// Echo exposes the underlying instance for tests.
func Echo() *echo.Echo {
	return server.root
}

func ApiGET(path string, h echo.HandlerFunc) {
	server.api.GET(path, h)
}

func ApiPOST(path string, h echo.HandlerFunc) {
	server.api.POST(path, h)
}

func ApiPUT(path string, h echo.HandlerFunc) {
	server.api.PUT(path, h)
}

func ApiDELETE(path string, h echo.HandlerFunc) {
	server.api.DELETE(path, h)
}

// NotFoundJSON is the default body for unmatched API routes.
func NotFoundJSON(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
}
