package cmd

import (
	"context"
	"database/sql"
	"net"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kalvora/accounts-auth/app/controller"
	"github.com/kalvora/accounts-auth/app/mailer"
	"github.com/kalvora/accounts-auth/app/middleware"
	"github.com/kalvora/accounts-auth/app/repository"
	"github.com/kalvora/accounts-auth/app/service"
	"github.com/kalvora/accounts-auth/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server for the credential service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	mail, err := mailer.New(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure mailer")
	}

	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	oneTimeTokenRepo := repository.NewOneTimeTokenRepository(db)

	codec := service.NewTokenCodec(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	refreshTokens := service.NewRefreshTokenService(db, refreshTokenRepo, cfg.JWTRefreshTokenTTL)
	verification := service.NewEmailVerificationService(db, oneTimeTokenRepo, userRepo, mail, cfg)
	resets := service.NewPasswordResetService(db, oneTimeTokenRepo, userRepo, mail, cfg)
	authService := service.NewAuthService(db, userRepo, codec, refreshTokens, verification)

	go runTokenSweeper(refreshTokens)

	startHTTPServer(cfg, authService, verification, resets, userRepo)
}

// runTokenSweeper periodically reclaims expired refresh-token rows.
func runTokenSweeper(refreshTokens *service.RefreshTokenService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := refreshTokens.DeleteExpired(ctx); err != nil {
			logrus.WithError(err).Error("failed to delete expired refresh tokens")
		}
		cancel()
	}
}

func startHTTPServer(
	cfg *config.Config,
	authService *service.AuthService,
	verification *service.EmailVerificationService,
	resets *service.PasswordResetService,
	userRepo *repository.UserRepository,
) {
	e := echo.New()
	defer e.Close()
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
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
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

	authController := controller.NewAuthController(authService, verification, resets, cfg.PasswordPolicy)
	userController := controller.NewUserController(userRepo)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	auth := e.Group("/api/v1/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/refresh", authController.Refresh)
	auth.GET("/verify-email", authController.VerifyEmail)
	auth.POST("/forgot-password", authController.ForgotPassword)
	auth.POST("/reset-password", authController.ResetPassword)
	auth.GET("/health", authController.Health)

	users := e.Group("/api/v1/users")
	users.Use(authMiddleware.RequireAuth)
	users.GET("/me", userController.Me)
	users.GET("", userController.List, authMiddleware.RequireAdmin)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}
