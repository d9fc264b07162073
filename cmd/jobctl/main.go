package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/config"
	"github.com/qs3c/apply_go_server/internal/database"
	"github.com/qs3c/apply_go_server/internal/pkg/heartbeat"
	"github.com/qs3c/apply_go_server/internal/pkg/jwt"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
	"github.com/qs3c/apply_go_server/internal/pkg/screenshot"
	"github.com/qs3c/apply_go_server/internal/pkg/secret"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/service"
	"github.com/qs3c/apply_go_server/internal/supervisor"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "jobctl",
	Short:        "Operator tools for the application automation server",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return config.InitLogger(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file path")

	tokenCmd.Flags().String("operator", "operator", "operator name embedded in the token")
	tokenCmd.Flags().Int("hours", 0, "token lifetime in hours (defaults to jwt.expire_hours)")

	cleanupCmd.Flags().Int("days", 0, "keep screenshots newer than this (defaults to automation.screenshot_retention_days)")

	answersCmd.AddCommand(answersImportCmd)
	profileCmd.AddCommand(profileImportCmd)
	rootCmd.AddCommand(tokenCmd, keygenCmd, answersCmd, profileCmd, reconcileCmd, cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, eris.Wrap(err, "connect database")
	}
	return db, nil
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		operator, _ := cmd.Flags().GetString("operator")
		hours, _ := cmd.Flags().GetInt("hours")
		if hours <= 0 {
			hours = cfg.JWT.ExpireHours
		}
		token, err := jwt.GenerateToken(operator, cfg.JWT.Secret, hours)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a security.credential_key value",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secret.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var answersCmd = &cobra.Command{
	Use:   "answers",
	Short: "Manage standard answers",
}

var answersImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import question/answer pairs, overwriting answers for existing questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		db, err := openDB()
		if err != nil {
			return err
		}
		res, err := service.NewAnswerService(repository.NewAnswerRepository(db)).ImportYAML(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, skipped %d\n", res.Created, res.Updated, res.Skipped)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the applicant profile",
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Replace the applicant profile and append discovered candidate values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		var box *secret.Box
		if cfg.Security.CredentialKey != "" {
			box, err = secret.NewBox(cfg.Security.CredentialKey)
			if err != nil {
				return err
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		svc := service.NewProfileService(repository.NewProfileRepository(db), box)
		if _, err := svc.ImportYAML(f); err != nil {
			return err
		}

		conflicts, err := svc.Conflicts()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile saved, %d unresolved conflicts\n", len(conflicts))
		for _, c := range conflicts {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", c.Field, c.Candidates)
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Requeue or fail processing items whose worker is gone",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			return eris.Wrap(err, "connect redis")
		}
		defer rdb.Close()

		reconciler := supervisor.NewReconciler(
			repository.NewApplicationRepository(db),
			repository.NewLogRepository(db),
			heartbeat.NewChecker(rdb),
			pubsub.NewPublisher(rdb, cfg.Queue.EventChannel),
			cfg.Supervisor.ReconcilePolicy,
		)
		res, err := reconciler.Reconcile(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "requeued %d, failed %d\n", res.Requeued, res.Failed)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete local screenshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Automation.ScreenshotRetentionDays
		}
		if days <= 0 {
			return eris.New("retention days not set")
		}

		cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		removed, err := screenshot.Cleanup(cfg.Automation.ScreenshotDir, cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d screenshots older than %d days\n", removed, days)
		return nil
	},
}
