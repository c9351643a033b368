package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Rajat083/Internship-Recommender/internal/app"
	"github.com/Rajat083/Internship-Recommender/internal/recommend"
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Short:   "Recommend internships for a student profile",
	Example: `  recommenderctl recommend --name Asha --domain "Data Science" --skills Python,SQL,Excel --top-k 3`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		domain, _ := flags.GetString("domain")
		skills, _ := flags.GetStringSlice("skills")
		topK, _ := flags.GetInt("top-k")
		asJSON, _ := flags.GetBool("output-json")

		q, err := recommend.Validate(recommend.StudentDetails{Name: name, Domain: domain, Skills: skills}, topK, cfg.Recommend.MaxTopK)
		if err != nil {
			return err
		}
		return withCore(cmd, func(ctx context.Context, core *app.Core) error {
			if err := core.Engine.Ready(ctx); err != nil {
				return fmt.Errorf("%w (run ensure or build first)", err)
			}
			q.StudentID = recommend.NewStudentID()
			result, err := recommend.NewAssembler(core.Engine, core.Source, nil).Assemble(ctx, q)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			return printRecommendations(cmd, result)
		})
	},
}

func printRecommendations(cmd *cobra.Command, r *recommend.StudentRecommendation) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Student %s (%s): %s\n\n", r.StudentName, r.StudentID, strings.Join(r.StudentSkills, ", "))
	if len(r.Recommendations) == 0 {
		fmt.Fprintln(out, "No matching internships.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tTITLE\tCOMPANY\tDOMAIN\tSCORE\tSTIPEND")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.4f\t%.0f\n",
			rec.Rank, rec.InternshipID, rec.InternshipTitle, rec.Company, rec.Domain, rec.SimilarityScore, rec.Stipend)
	}
	return tw.Flush()
}

func init() {
	f := recommendCmd.Flags()
	f.String("name", "cli", "student name")
	f.String("domain", "", "preferred domain (required)")
	f.StringSlice("skills", nil, "comma-separated skills (required)")
	f.IntP("top-k", "k", 5, "number of recommendations")
	f.Bool("output-json", false, "print the response as JSON")
	rootCmd.AddCommand(recommendCmd)
}
