package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
	"github.com/synaptica-ai/rwe-planner/pkg/scoring"
)

type planOpts struct {
	requestFile  string
	protocolFile string
	diseaseArea  string
	countries    []string
	enrollment   int
	duration     int
	inclusion    string
	exclusion    string
	primary      string
	secondary    string
	topSites     int
	outputFmt    string
}

func newPlanCmd() *cobra.Command {
	var opts planOpts

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Submit a study design and print the ranked plan",
		Long: `Builds a study submission from a JSON request file or from flags, sends it to
the planning service and prints the complexity assessment and ranked sites.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.requestFile, "file", "f", "", "JSON plan request (overrides the other input flags)")
	cmd.Flags().StringVar(&opts.protocolFile, "protocol", "", "Path to the protocol text")
	cmd.Flags().StringVar(&opts.diseaseArea, "disease", "", "Disease area")
	cmd.Flags().StringSliceVar(&opts.countries, "country", nil, "Target country (repeatable or comma separated)")
	cmd.Flags().IntVar(&opts.enrollment, "enrollment", 100, "Target enrollment")
	cmd.Flags().IntVar(&opts.duration, "duration", 12, "Study duration in months")
	cmd.Flags().StringVar(&opts.inclusion, "inclusion", "", "Inclusion criteria, one per line")
	cmd.Flags().StringVar(&opts.exclusion, "exclusion", "", "Exclusion criteria, one per line")
	cmd.Flags().StringVar(&opts.primary, "primary-endpoints", "", "Primary endpoints, one per line")
	cmd.Flags().StringVar(&opts.secondary, "secondary-endpoints", "", "Secondary endpoints, one per line")
	cmd.Flags().IntVar(&opts.topSites, "top", planning.MaxListedSites, "Number of sites to print")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

func buildSubmission(opts planOpts) (*planning.StudySubmission, error) {
	if opts.requestFile != "" {
		raw, err := os.ReadFile(opts.requestFile)
		if err != nil {
			return nil, fmt.Errorf("read request: %w", err)
		}
		var req models.PlanRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("parse request %s: %w", opts.requestFile, err)
		}
		return planning.FromRequest(req), nil
	}

	sub := planning.NewStudySubmission()
	if opts.protocolFile != "" {
		raw, err := os.ReadFile(opts.protocolFile)
		if err != nil {
			return nil, fmt.Errorf("read protocol: %w", err)
		}
		if err := sub.SetProtocolText(string(raw)); err != nil {
			return nil, err
		}
	}
	setters := []error{
		sub.SetDiseaseArea(opts.diseaseArea),
		sub.SetTargetCountries(opts.countries),
		sub.SetTargetEnrollment(opts.enrollment),
		sub.SetStudyDurationMonths(opts.duration),
		sub.SetInclusionCriteriaFromLines(opts.inclusion),
		sub.SetExclusionCriteriaFromLines(opts.exclusion),
		sub.SetPrimaryEndpointsFromLines(opts.primary),
		sub.SetSecondaryEndpointsFromLines(opts.secondary),
	}
	for _, err := range setters {
		if err != nil {
			return nil, err
		}
	}
	return sub, nil
}

func runPlan(ctx context.Context, out io.Writer, opts planOpts) error {
	sub, err := buildSubmission(opts)
	if err != nil {
		return err
	}

	cfg := config.Load()
	service := planning.NewService(planning.ClientFromConfig(ctx, cfg))
	result, err := service.Plan(ctx, sub)
	if err != nil {
		return err
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(planning.View(result, planning.DefaultChartSites))
	}
	return renderPlan(out, result, opts.topSites)
}

func renderPlan(out io.Writer, result *planning.StudyPlanResult, top int) error {
	fmt.Fprintf(out, "Study %s\n", result.StudyID)
	fmt.Fprintf(out, "Protocol complexity: %.1f/10 (%s)\n", result.ProtocolComplexityScore, result.Complexity.Label)
	fmt.Fprintf(out, "Estimated cohort: %d patients\n", result.EstimatedTotalCohortSize)
	if result.Timeline != nil {
		fmt.Fprintf(out, "Timeline: %d months startup, %d months enrollment, %d months total\n",
			result.Timeline.StartupMonths, result.Timeline.EnrollmentMonths, result.Timeline.TotalMonths)
	}

	printList(out, "Risk factors", result.RiskFactors)
	printList(out, "Optimization opportunities", result.OptimizationOpportunities)

	sites := scoring.Top(result.RankedSites, top)
	if len(sites) == 0 {
		fmt.Fprintln(out, "\nNo sites recommended.")
		return nil
	}

	fmt.Fprintf(out, "\nRecommended sites (%d of %d)\n", len(sites), len(result.RankedSites))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSITE\tCOUNTRY\tFEAS\tDIV\tDATA\tOVERALL\tRATING")
	for _, s := range sites {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			s.OverallRank, s.SiteName, s.Country, s.Feasibility, s.Diversity, s.DataAvailability, s.OverallScore, s.Classification.Label)
	}
	return tw.Flush()
}

func printList(out io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(item))
	}
}
