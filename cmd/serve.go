package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahayog/ms-go-donations/app/certificate"
	"github.com/sahayog/ms-go-donations/app/controller"
	"github.com/sahayog/ms-go-donations/app/gateway"
	"github.com/sahayog/ms-go-donations/app/middleware"
	"github.com/sahayog/ms-go-donations/app/repository"
	"github.com/sahayog/ms-go-donations/app/service"
	"github.com/sahayog/ms-go-donations/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the donations service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, donationService, cleanup := mustCreateDonationService()
	defer cleanup()

	donationController := controller.NewDonationController(donationService)
	sessionAuth := middleware.NewSessionAuth(cfg.App.SessionSecret)

	e := setupHTTPServer(donationController, sessionAuth)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	donationController *controller.DonationController,
	sessionAuth *middleware.SessionAuth,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", donationController.Health)

	donations := e.Group("/donations")
	donations.POST("/orders", donationController.CreateOrder)
	donations.POST("/verify", donationController.VerifyPayment)
	donations.GET("/:donationId", donationController.GetDonation)
	donations.GET("/:donationId/certificate", donationController.Certificate)
	donations.GET("", donationController.ListDonations, sessionAuth.RequireSession())

	webhooks := e.Group("/webhooks/gateways")
	webhooks.POST("/:gateway", donationController.HandleGatewayWebhook)

	return e
}

func mustCreateDonationService() (*config.Config, *service.DonationService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	donationRepo := repository.NewDonationRepository(db)
	eventRepo := repository.NewDonationEventRepository(db)
	webhookRepo := repository.NewGatewayWebhookRepository(db)

	razorpayGateway := gateway.NewRazorpayGateway(gateway.RazorpayConfig{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
		APIBaseURL:    cfg.Razorpay.APIBaseURL,
		HTTPTimeout:   cfg.Razorpay.HTTPTimeout,
	})

	gatewayRegistry := gateway.NewRegistry(razorpayGateway)
	certificateRenderer := certificate.NewRenderer(certificate.Config{
		OrganizationName: cfg.Certificate.OrganizationName,
		RegistrationLine: cfg.Certificate.RegistrationLine,
	})

	donationService := service.NewDonationService(
		donationRepo,
		eventRepo,
		webhookRepo,
		gatewayRegistry,
		cfg.Donations,
		certificateRenderer,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, donationService, cleanup
}
