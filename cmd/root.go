package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/config"
	"curator/internal/inputprocessor"
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Curator CLI App",
	Long: `Curator decides whether content is shown, shown with a caution, or blocked
for a particular user, escalating uncertain decisions to human moderators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipInit(cmd) {
			return nil
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		configureLogging(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cfg, inputprocessor.New(fetchTimeout))
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		initialized = appInstance
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

// initialized is closed by Execute whether or not the command failed, so
// queued escalations are always forwarded.
var initialized *app.App

const fetchTimeout = 15 * time.Second

// skipInit reports commands that run without config or backends.
func skipInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

func configureLogging(cfg *config.Config) {
	if lvl, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", cfg.Logging.Level).Warn("unknown log level, keeping info")
	}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stderr)
}

func Execute() {
	err := rootCmd.Execute()
	if initialized != nil {
		if cerr := initialized.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext returns the app built by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check store connectivity and report the pipeline configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config

		fmt.Printf("Checking %s store connectivity...\n", cfg.Database.Driver)
		if err := appInstance.Store.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		fmt.Println("Store connection successful.")

		fmt.Printf("Active strategy:   %s\n", appInstance.Engine.Strategy().Name)
		fmt.Printf("Fast filter rules: %d\n", appInstance.Filter.RuleCount())
		fmt.Printf("Classifiers:       %s\n", strings.Join(appInstance.Classifiers.Names(), ", "))
		reasoning := "disabled"
		if appInstance.Reasoner != nil {
			reasoning = appInstance.Reasoner.Name()
		}
		fmt.Printf("Reasoning:         %s\n", reasoning)
		fmt.Printf("Cache backend:     %s\n", cfg.Cache.Backend)
		fmt.Printf("Escalation sink:   %s\n", cfg.Escalation.Sink)
		fmt.Printf("Profiles:          %s\n", strings.Join(appInstance.Profiles.IDs(), ", "))
		return nil
	},
}
