package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/citations"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/config"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/contributions"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/database"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/documents"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/quiz"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/server"
	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gtmhub-api",
		Short: "GTM Hub documents and contributions backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newMigrateCommand(), newSessionTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (postgres, sqlite)")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Bool("migrate-on-start", defaults.GetBool("database.migrate_on_start"), "Apply schema migrations before serving")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("tauth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.migrate_on_start", "migrate-on-start")
	bindFlag(cmd, "tauth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			db, closeDB, err := openDatabase(appConfig, logger)
			if err != nil {
				return err
			}
			defer closeDB()
			return database.Migrate(db, logger)
		},
	}
}

// newSessionTokenCommand mints a session for local development against a hub without a login service.
func newSessionTokenCommand() *cobra.Command {
	var (
		userID      string
		email       string
		displayName string
		admin       bool
	)
	cmd := &cobra.Command{
		Use:   "session-token",
		Short: "Print a signed development session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			configViper := viper.GetViper()
			issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
				SigningSecret: []byte(configViper.GetString("tauth.signing_secret")),
				Issuer:        configViper.GetString("tauth.issuer"),
				TokenTTL:      time.Duration(configViper.GetInt("tauth.token_ttl_minutes")) * time.Minute,
			})
			if err != nil {
				return err
			}
			identity := auth.SessionIdentity{UserID: userID, Email: email, DisplayName: displayName}
			if admin {
				roles := configViper.GetStringSlice("auth.admin_roles")
				if len(roles) == 0 {
					return errors.New("auth.admin_roles is empty; cannot mint an admin session")
				}
				identity.Roles = []string{roles[0]}
			}
			token, expiresAt, err := issuer.Issue(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Session user id")
	cmd.Flags().StringVar(&email, "email", "", "Session email")
	cmd.Flags().StringVar(&displayName, "name", "", "Session display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the first configured admin role")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func openDatabase(appConfig config.AppConfig, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
		Path:   appConfig.DatabasePath,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, closeDB, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	if appConfig.MigrateOnStart {
		if err := database.Migrate(db, logger); err != nil {
			return err
		}
	}

	registry := metrics.NewRegistry()
	idProvider := ids.NewUUIDProvider()

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	directory, err := users.NewService(users.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger.Named("users"),
	})
	if err != nil {
		return err
	}

	documentStore, err := documents.NewService(documents.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger.Named("documents"),
		Metrics:    registry,
	})
	if err != nil {
		return err
	}

	citationIndex, err := citations.NewService(citations.ServiceConfig{
		Database:   db,
		Documents:  documentStore,
		Directory:  directory,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger.Named("citations"),
	})
	if err != nil {
		return err
	}

	contributionService, err := contributions.NewService(contributions.ServiceConfig{
		Database:    db,
		Documents:   documentStore,
		Citations:   citationIndex,
		Directory:   directory,
		AutoPublish: contributions.NewAutoPublishPolicy(appConfig.AutoPublishRules...),
		Clock:       time.Now,
		IDProvider:  idProvider,
		Logger:      logger.Named("contributions"),
		Metrics:     registry,
	})
	if err != nil {
		return err
	}

	quizService, err := quiz.NewService(quiz.ServiceConfig{
		Database:     db,
		Bank:         quiz.DefaultBank(),
		PassingScore: appConfig.QuizPassingScore,
		Clock:        time.Now,
		IDProvider:   idProvider,
		Logger:       logger.Named("quiz"),
		Metrics:      registry,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Users:            directory,
		AdminPolicy:      auth.NewAdminPolicy(appConfig.AdminRoles, appConfig.AdminEmails),
		Documents:        documentStore,
		Contributions:    contributionService,
		Citations:        citationIndex,
		Quiz:             quizService,
		Database:         db,
		Metrics:          registry,
		AllowedOrigins:   appConfig.AllowedOrigins,
		Logger:           logger.Named("http"),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
