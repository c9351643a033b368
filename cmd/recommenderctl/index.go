package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/builder"
	"github.com/Rajat083/Internship-Recommender/pkg/resilience"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the TF-IDF vectorizer on the internships table and save it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			model, err := core.Loader.Train(ctx, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vectorizer %s: %d terms from %d documents\n",
				core.Names.Vectorizer, model.Dim(), model.Documents())
			if force {
				fmt.Fprintln(cmd.OutOrStdout(), "the index was built against the previous vocabulary; run build next")
			}
			return nil
		})
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index and id list from the internships table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		retrain, _ := cmd.Flags().GetBool("retrain")
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			var report *builder.Report
			err := resilience.WithTimeout(ctx, cfg.Rebuild.Timeout, "cli-rebuild", func(ctx context.Context) error {
				var err error
				if retrain {
					report, err = core.Builder.Retrain(ctx)
				} else {
					report, err = core.Builder.Rebuild(ctx)
				}
				return err
			})
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		})
	},
}

var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Build the artifacts only if they are missing or inconsistent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.EnsureIndex(ctx); err != nil {
				return err
			}
			st := core.Engine.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "index ready: generation %d, %d internships, dimension %d\n",
				st.Generation, st.Documents, st.Dimension)
			return nil
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the persisted vectorizer, index and id list agree",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Builder.Verify(ctx); err != nil {
				return fmt.Errorf("artifacts inconsistent: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "artifacts consistent")
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics of the persisted index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Engine.Ready(ctx); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), core.Engine.Stats())
		})
	},
}

func printReport(cmd *cobra.Command, r *builder.Report) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"index generation %d: %d internships, dimension %d, %d skipped, %d degenerate, took %s\n",
		r.Generation, r.Documents, r.Dimension, r.Skipped, r.Degenerate, r.Duration.Round(time.Millisecond))
}

func init() {
	trainCmd.Flags().Bool("force", false, "refit even when a saved vectorizer exists")
	buildCmd.Flags().Bool("retrain", false, "refit the vectorizer before rebuilding")
	rootCmd.AddCommand(trainCmd, buildCmd, ensureCmd, verifyCmd, statsCmd)
}
