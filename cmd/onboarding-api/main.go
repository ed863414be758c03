package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"google.golang.org/api/option"

	"onboarding-api/internal/config"
	"onboarding-api/internal/handlers"
	"onboarding-api/internal/log"
	"onboarding-api/internal/middleware"
	"onboarding-api/internal/models"
	"onboarding-api/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Setup(os.Stdout, cfg.LogLevel, cfg.GinMode == gin.ReleaseMode)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	slog.Info("Connecting to Firestore", "project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
	firestoreClient, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID, clientOpts...)
	if err != nil {
		slog.Error("Failed to create Firestore client", "component", "startup", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := firestoreClient.Close(); err != nil {
			slog.Error("Error closing Firestore client", "component", "shutdown", "error", err)
		}
	}()

	firebaseApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirestoreProjectID}, clientOpts...)
	if err != nil {
		slog.Error("Failed to initialise Firebase app", "component", "startup", "error", err)
		os.Exit(1)
	}
	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		slog.Error("Failed to create Firebase Auth client", "component", "startup", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	firestoreService := services.NewFirestoreService(firestoreClient)
	identityService := services.NewFirebaseIdentityService(authClient)
	emailService := services.NewEmailService(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SenderEmail,
		Timeout:  cfg.SMTPTimeout,
	})

	var dispatcher services.InvitationDispatcher = emailService
	var emailWorker *handlers.EmailWorkerHandler
	if cfg.QueuedEmailDelivery() {
		cloudTasksService, err := services.NewCloudTasksService(ctx, services.CloudTasksConfig{
			ProjectID:           cfg.GoogleCloudProject,
			Location:            cfg.GCPRegion,
			QueueName:           cfg.CloudTasksQueue,
			WorkerURL:           cfg.EmailWorkerURL,
			Secret:              cfg.CloudTasksSecret,
			ServiceAccountEmail: cfg.CloudTasksServiceAccountEmail,
		})
		if err != nil {
			slog.Error("Failed to create Cloud Tasks service", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cloudTasksService.Close(); err != nil {
				slog.Error("Error closing Cloud Tasks client", "error", err)
			}
		}()
		dispatcher = cloudTasksService
		emailWorker = handlers.NewEmailWorkerHandler(emailService, firestoreService)
	}

	var metadata services.RepositoryMetadataSource
	if cfg.GitHubToken != "" || cfg.GitHubAppID != 0 {
		githubService, err := services.NewGitHubService(cfg, httpClient)
		if err != nil {
			slog.Error("Failed to create GitHub service", "error", err)
			os.Exit(1)
		}
		metadata = githubService
	}

	onboardingService := services.NewOnboardingService(services.OnboardingDeps{
		Sessions:     firestoreService,
		Repositories: firestoreService,
		Users:        firestoreService,
		Identity:     identityService,
		Dispatcher:   dispatcher,
		Notifier:     services.NewSlackNotifier(cfg.SlackWebhookURL, httpClient),
		LinkForToken: cfg.InvitationLink,
	})

	opts := handlers.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		WorkerAuth: []gin.HandlerFunc{
			middleware.CloudTasksAuthMiddleware(cfg.CloudTasksSecret),
			middleware.OIDCMiddleware(middleware.OIDCConfig{
				ServiceAccountEmail: cfg.CloudTasksServiceAccountEmail,
				Audience:            cfg.EmailWorkerURL,
			}),
		},
	}
	if cfg.AdminAuthEnabled {
		opts.AdminAuth = middleware.FirebaseAuthMiddleware(identityService, models.RoleAdmin)
		opts.UserAuth = middleware.FirebaseAuthMiddleware(identityService, "")
	}

	router := handlers.NewRouter(handlers.Handlers{
		Roles:        handlers.NewRoleHandler(services.NewRoleService(identityService, firestoreService)),
		Repositories: handlers.NewRepositoryHandler(services.NewRepositoryService(firestoreService, metadata)),
		Onboarding:   handlers.NewOnboardingHandler(onboardingService),
		Employees:    handlers.NewEmployeeHandler(onboardingService),
		EmailWorker:  emailWorker,
	}, opts)

	slog.Info("Starting server",
		"component", "server",
		"port", cfg.Port,
		"email_delivery", cfg.EmailDeliveryMode,
		"admin_auth", cfg.AdminAuthEnabled,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "component", "server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...", "component", "server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "component", "server", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully", "component", "server")
}
