package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/datasource"
	"github.com/spf13/cobra"
)

var internshipsCmd = &cobra.Command{
	Use:   "internships",
	Short: "Inspect the internships table",
}

var internshipsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List internships ordered by id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		activeOnly, _ := cmd.Flags().GetBool("active-only")
		asJSON, _ := cmd.Flags().GetBool("output-json")
		if limit < 0 {
			return fmt.Errorf("--limit must not be negative, got %d", limit)
		}
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			rows, err := core.Source.FetchInternships(ctx, datasource.Filter{ActiveOnly: activeOnly, Limit: limit})
			if err != nil {
				return fmt.Errorf("listing internships: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tDOMAIN\tSTIPEND\tACTIVE")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
					r.ID, r.Title, r.Company, r.Domain, strconv.FormatFloat(r.Stipend, 'f', -1, 64), r.Active)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d internships\n", len(rows))
			return nil
		})
	},
}

func init() {
	internshipsListCmd.Flags().Int("limit", 0, "maximum number of rows (0 = all)")
	internshipsListCmd.Flags().Bool("active-only", false, "only list active internships")
	internshipsListCmd.Flags().Bool("output-json", false, "print rows as JSON")
	internshipsCmd.AddCommand(internshipsListCmd)
	rootCmd.AddCommand(internshipsCmd)
}
