package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"oneoffice/api/handler"
	apiMiddleware "oneoffice/api/middleware"
	"oneoffice/api/routes"
	"oneoffice/config"
	"oneoffice/internal/repository"
	"oneoffice/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	db := config.ConnectionDb()
	validate := validator.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	mfaSecret := os.Getenv("MFA_JWT_SECRET")
	if mfaSecret == "" {
		logger.Fatal("MFA_JWT_SECRET is required")
	}
	issuer := os.Getenv("MFA_ISSUER")
	if issuer == "" {
		issuer = "1Office"
	}
	mfaIssuer := service.MFATokenIssuerJWT{
		Secret: []byte(mfaSecret),
		Issuer: issuer,
		TTL:    5 * time.Minute,
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	verificationRepo := repository.NewVerificationTokenRepository(db)
	mfaRepo := repository.NewMFASecretRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)

	passwordHasher := service.BcryptPasswordHasher{}
	totpProvider := service.NewTOTPProvider(issuer)
	emailSender := service.NewResendEmailSender(
		os.Getenv("RESEND_API_KEY"),
		os.Getenv("EMAIL_FROM"),
		os.Getenv("APP_BASE_URL"),
	)

	sessionConfig := service.SessionConfig{
		Lifetime:         envDuration("SESSION_LIFETIME", 24*time.Hour),
		RememberLifetime: envDuration("SESSION_REMEMBER_LIFETIME", 30*24*time.Hour),
		IdleTimeout:      envDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		MaxDevices:       envInt("SESSION_MAX_DEVICES", 5),
	}

	authService := service.NewDeviceAuthService(
		userRepo,
		sessionRepo,
		mfaRepo,
		securityRepo,
		passwordHasher,
		mfaIssuer,
		totpProvider,
		service.RealClock{},
		logger,
		sessionConfig,
	)
	accountService := service.NewAccountService(
		userRepo,
		sessionRepo,
		verificationRepo,
		mfaRepo,
		emailSender,
		passwordHasher,
		totpProvider,
		service.RealClock{},
		service.AccountConfig{
			VerificationTokenTTL: 24 * time.Hour,
			ResetTokenTTL:        30 * time.Minute,
			MFATokenTTL:          5 * time.Minute,
			MFAIssuer:            issuer,
		},
	)
	permissionService := service.NewPermissionService(
		userRepo,
		permissionRepo,
		securityRepo,
		service.RealClock{},
		logger,
	)

	sessionGate := apiMiddleware.SessionMiddleware{
		Auth:      authService,
		LoginPath: os.Getenv("LOGIN_PATH"),
	}
	permissionGate := apiMiddleware.PermissionMiddleware{Permissions: permissionService}

	authHandler := handler.NewAuthHandler(authService, accountService, validate)
	authHandler.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	authHandler.SecureCookies = os.Getenv("COOKIE_SECURE") != "false"
	sessionHandler := handler.NewSessionHandler(authService, validate, sessionGate)
	sessionHandler.CookieDomain = authHandler.CookieDomain
	sessionHandler.SecureCookies = authHandler.SecureCookies

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	router := routes.NewRouter(app, authHandler, sessionHandler, sessionGate, permissionGate)
	router.RegisterRoutes()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithField("addr", addr).Info("server started")
	if err := app.StartServer(server); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
