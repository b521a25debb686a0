package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo-contrib/pprof"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	_ "github.com/medicore/hms/docs"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/pkg/common"
	"github.com/medicore/hms/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

const (
	ApiPrefix     = "/api/v1"
	AppContextKey = "appctx"
	loginPath     = ApiPrefix + "/auth/login"
)

var server *AdminServer

type AdminServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

// Init builds the echo instance. Routes are added afterwards through the
// Api* helpers.
func Init(appCtx app.AppContext) *AdminServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zap.L().Error("handler panic", zap.String("path", c.Path()), zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: common.UUID}))
	e.Use(requestLogger())
	e.Use(requestMetrics)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})
	if cfg.System.Debug {
		pprof.Register(e)
	}

	api := e.Group(ApiPrefix)
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(cfg.Web.Secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return new(JwtClaims) },
		Skipper: func(c echo.Context) bool {
			return c.Path() == loginPath
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		},
	}))
	api.Use(operatorGuard(appCtx.DB))

	server = &AdminServer{root: e, api: api, appCtx: appCtx}
	return server
}

// Echo returns the root echo instance of the current server
func Echo() *echo.Echo {
	return server.root
}

// Listen starts serving and blocks until the server stops
func Listen() error {
	cfg := server.appCtx.Config()
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.S().Infof("admin api listening on %s", addr)
	err := server.root.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	if server == nil {
		return nil
	}
	return server.root.Shutdown(ctx)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PATCH(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// GetAppContext returns the application bound to the request
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(AppContextKey).(app.AppContext)
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("namespace", "web"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				zap.L().Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			zap.L().Debug("request", fields...)
			return nil
		},
	})
}

func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}
		route := c.Path()
		if route == "" || strings.HasPrefix(route, "/swagger") {
			route = "other"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
		return err
	}
}

// httpErrorHandler renders echo errors in the api error envelope
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		zap.L().Error("unhandled api error", zap.String("path", c.Path()), zap.Error(err))
	}
	var resp error
	if c.Request().Method == http.MethodHead {
		resp = c.NoContent(code)
	} else {
		resp = c.JSON(code, map[string]interface{}{
			"error":   strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
			"message": msg,
		})
	}
	if resp != nil {
		zap.L().Error("write error response", zap.Error(resp))
	}
}
