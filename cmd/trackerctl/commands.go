package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/legacy"
	"example.com/exercisetracker/internal/logging"
	"example.com/exercisetracker/internal/persistence"
	"example.com/exercisetracker/internal/persistence/memory"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Operate on exercise tracker data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newImportCmd())
	return root
}

func newScoreCmd() *cobra.Command {
	var weeks bool

	cmd := &cobra.Command{
		Use:   "score <users.json>",
		Short: "Print the scoreboard for a legacy /users export",
		Long: `Print the scoreboard for a legacy /users export.

Dates must be zero-padded YYYY-MM-DD; entries such as 2025-3-4 are kept but never score.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			export, err := loadExport(args[0])
			if err != nil {
				return err
			}

			// Passwords are never checked in this store.
			svc := domain.NewService(memory.NewRepository(), domain.WithHashCost(bcrypt.MinCost))
			summary, err := legacy.NewImporter(svc, nil).Import(ctx, export)
			if err != nil {
				return err
			}

			standings, err := svc.Scoreboard(ctx)
			if err != nil {
				return err
			}
			if err := writeStandings(cmd.OutOrStdout(), standings); err != nil {
				return err
			}

			if weeks {
				for _, standing := range standings {
					breakdown, err := svc.WeeklyBreakdown(ctx, standing.Username)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", standing.Username)
					for _, week := range breakdown {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s..%s  days=%d  points=%d\n",
							week.Start.Format("2006-01-02"), week.End.Format("2006-01-02"), week.QualifyingDays, week.Points)
					}
				}
			}

			if summary.ExercisesRejected > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d exercises rejected\n", summary.ExercisesRejected)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&weeks, "weeks", false, "also print each user's weekly breakdown")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <users.json>",
		Short: "Load a legacy /users export into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg := config.Load()
			logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
			if err != nil {
				return err
			}
			defer logger.Sync()

			export, err := loadExport(args[0])
			if err != nil {
				return err
			}

			store, err := persistence.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := domain.NewService(store.Repository, domain.WithLogger(logger))
			summary, err := legacy.NewImporter(svc, logger).Import(ctx, export)
			if err != nil {
				return err
			}

			logger.Info("import finished",
				zap.String("store", cfg.StoreDriver),
				zap.Int("users_created", summary.UsersCreated),
				zap.Int("users_skipped", summary.UsersSkipped),
				zap.Int("exercises_imported", summary.ExercisesImported),
				zap.Int("exercises_rejected", summary.ExercisesRejected),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d users and %d exercises (%d users skipped, %d exercises rejected)\n",
				summary.UsersCreated, summary.ExercisesImported, summary.UsersSkipped, summary.ExercisesRejected)
			return nil
		},
	}
	return cmd
}

func loadExport(path string) (*legacy.Export, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return legacy.Load(file)
}

func writeStandings(w io.Writer, standings []domain.Standing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tUSER\tPOINTS")
	for i, standing := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, standing.Username, standing.Points)
	}
	return tw.Flush()
}
