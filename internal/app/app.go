package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alimikegami/point-of-sales/payment-service/config"
	"github.com/alimikegami/point-of-sales/payment-service/internal/controller"
	circuitbreaker "github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/circuit-breaker"
	paymentgateway "github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/tracing"
	localmiddleware "github.com/alimikegami/point-of-sales/payment-service/internal/middleware"
	"github.com/alimikegami/point-of-sales/payment-service/internal/repository"
	"github.com/alimikegami/point-of-sales/payment-service/internal/service"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/response"
	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type App struct {
	DB            *sqlx.DB
	KafkaProducer *kafka.Conn
	Config        *config.Config
	Server        *echo.Echo
	scheduler     gocron.Scheduler
}

func (app *App) Start() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = logger

	e := echo.New()
	app.Server = e

	traceProvider, err := tracing.InitTracing(app.Config.TracingConfig.CollectorHost)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize tracing")
	}

	defer func() {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
	}()

	tracer := traceProvider.Tracer("payment-service")

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// span creation and naming
			ctx, span := tracer.Start(c.Request().Context(), fmt.Sprintf("[%s] %s", c.Request().Method, c.Path()))
			defer span.End()

			// add the context to the request
			req := c.Request()
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	})

	// Used empty string so that metrics are not prefixed with the service name making it easier to aggregate across services
	e.Use(echoprometheus.NewMiddleware(""))
	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(fmt.Sprintf(":%s", app.Config.MetricsPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}()

	e.Use(localmiddleware.Logger)

	g := e.Group("/api/v1")

	g.GET("/ping", func(c echo.Context) error {
		return response.WriteSuccessResponse(c, "Hello, World!", nil)
	})

	w4pConf := app.Config.WayforpayConfig
	signer := paymentgateway.CreateSigner(w4pConf.MerchantAccount, w4pConf.MerchantSecret)
	cb := circuitbreaker.CreateCircuitBreaker("payment-service")
	gatewayClient := paymentgateway.CreateClient(signer, w4pConf.MerchantDomain, w4pConf.PayURL, w4pConf.APIURL, cb)

	orderRepo := repository.CreateOrderRepository(app.DB)
	paymentSvc := service.CreatePaymentService(orderRepo, gatewayClient, app.KafkaProducer, app.Config)
	controller.CreatePaymentController(g, paymentSvc, localmiddleware.IsLoggedIn(app.Config.JWTSecret))

	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	_, err = s.NewJob(
		gocron.DurationJob(
			time.Minute,
		),
		gocron.NewTask(
			paymentSvc.ExpireStalePayments,
		),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule payment expiry job")
	}

	s.Start()
	app.scheduler = s

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", app.Config.ServicePort)))
}

func (app *App) StopServer() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if app.scheduler != nil {
		if err := app.scheduler.Shutdown(); err != nil {
			return err
		}
	}

	return app.Server.Shutdown(ctx)
}
