package server

import (
	"context"
	"log/slog"
	"net/http"

	"family-news-service/internal/handler"
	custommw "family-news-service/internal/middleware"
	"family-news-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo                *echo.Echo
	subscriptionHandler *handler.SubscriptionHandler
	jwtSecret           string
}

func NewServer(payments service.PaymentService, subscriptions service.SubscriptionService, frontendURL, jwtSecret string, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				logger.Error("request", attrs...)
			} else {
				logger.Info("request", attrs...)
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:                e,
		subscriptionHandler: handler.NewSubscriptionHandler(payments, subscriptions, frontendURL),
		jwtSecret:           jwtSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	sub := api.Group("/subscription")

	// Gateway redirect callbacks carry no session; they authenticate through
	// the pending-payment context instead.
	sub.GET("/payment/approve", s.subscriptionHandler.ApprovePayment)
	sub.GET("/payment/cancel", s.subscriptionHandler.CancelPayment)
	sub.GET("/payment/fail", s.subscriptionHandler.FailPayment)

	authed := sub.Group("", custommw.Auth(s.jwtSecret))
	authed.POST("/payment/ready", s.subscriptionHandler.ReadyPayment)
	authed.GET("/my", s.subscriptionHandler.MySubscriptions)
	authed.GET("/:id", s.subscriptionHandler.GetSubscription)
	authed.GET("/:id/payments", s.subscriptionHandler.ListPayments)
	authed.POST("/:id/cancel", s.subscriptionHandler.CancelSubscription)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
