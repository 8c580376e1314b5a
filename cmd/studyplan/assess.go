package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

func newAssessCmd() *cobra.Command {
	var (
		score        float64
		protocolFile string
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Quick complexity assessment of a protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req models.QuickAssessmentRequest
			switch {
			case cmd.Flags().Changed("score"):
				req.ProtocolComplexityScore = &score
			case protocolFile != "":
				raw, err := os.ReadFile(protocolFile)
				if err != nil {
					return fmt.Errorf("read protocol: %w", err)
				}
				req.ProtocolText = string(raw)
			default:
				return fmt.Errorf("either --score or --protocol is required")
			}
			return runAssess(cmd.Context(), cmd.OutOrStdout(), req)
		},
	}

	cmd.Flags().Float64Var(&score, "score", 0, "Known protocol complexity score (0-10)")
	cmd.Flags().StringVar(&protocolFile, "protocol", "", "Path to the protocol text, scored by the planning service")

	return cmd
}

func runAssess(ctx context.Context, out io.Writer, req models.QuickAssessmentRequest) error {
	cfg := config.Load()
	service := planning.NewService(planning.ClientFromConfig(ctx, cfg))
	res, err := service.QuickAssess(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Complexity: %.1f/10 (%s)\n", res.ProtocolComplexityScore, res.Complexity.Label)
	fmt.Fprintf(out, "Recommendation: %s\n", res.Recommendation)
	printList(out, "Warnings", res.Warnings)
	printList(out, "Recommendations", res.Recommendations)
	return nil
}
