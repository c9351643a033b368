package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion"
	"github.com/Rajat083/Internship-Recommender/internal/ingestion/publisher"
	"github.com/Rajat083/Internship-Recommender/pkg/kafka"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert internships from a JSON or CSV file",
	Long: `Upsert internships from a JSON or CSV file into the configured data source.
With Kafka enabled the imported ids are announced on internships.changed so
the indexer rebuilds; --rebuild rebuilds the index directly instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		rebuildAfter, _ := cmd.Flags().GetBool("rebuild")

		format, err := ingestion.FormatFromPath(path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		rows, err := ingestion.Decode(f, format)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			var producer kafka.Publisher
			if cfg.Kafka.Enabled {
				p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.InternshipsChanged)
				defer p.Close()
				producer = p
			}
			resp, err := publisher.New(core.Source, producer, nil, appName).Ingest(ctx, rows)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d of %d internships from %s\n", resp.Written, resp.Received, path)
			for _, r := range resp.Rejected {
				fmt.Fprintf(out, "  rejected row %d (id %d): %v\n", r.Row, r.ID, r.Fields)
			}
			if rebuildAfter && resp.Written > 0 {
				report, err := core.Builder.Rebuild(ctx)
				if err != nil {
					return err
				}
				printReport(cmd, report)
			}
			return nil
		})
	},
}

func init() {
	importCmd.Flags().StringP("file", "f", "", "path to a .json or .csv file")
	importCmd.Flags().Bool("rebuild", false, "rebuild the index after importing")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
