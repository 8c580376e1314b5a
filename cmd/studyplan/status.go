package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/health"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
)

func newStatusCmd() *cobra.Command {
	var (
		catalogPath string
		watch       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the planner's MCP dependencies",
		Long: `Runs one health cycle against every dependency in the catalog. With --watch a
new cycle starts on every tick; a slow cycle overtaken by a newer one is not
printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if catalogPath != "" {
				cfg.DependencyCatalog = catalogPath
			}
			agg, err := health.AggregatorFromConfig(cfg)
			if err != nil {
				return err
			}
			monitor := health.NewMonitor(agg, planning.NewMemorySequencer(), nil)
			if watch <= 0 {
				snap, _, err := monitor.RunCycle(cmd.Context())
				if err != nil {
					return err
				}
				return renderSnapshot(cmd.OutOrStdout(), snap)
			}
			return watchStatus(cmd.Context(), cmd.OutOrStdout(), monitor, watch)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Dependency catalog YAML (default: DEPENDENCY_CATALOG or built-in)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "Repeat every interval, e.g. 10s")

	return cmd
}

// watchStatus starts a cycle per tick without waiting for the previous one.
// Only snapshots that are still the newest when they complete are printed,
// and never after a snapshot with a later ticket.
func watchStatus(ctx context.Context, out io.Writer, monitor *health.Monitor, every time.Duration) error {
	printed := make(chan health.Snapshot)
	run := func() {
		snap, accepted, err := monitor.RunCycle(ctx)
		if err != nil || !accepted {
			return
		}
		select {
		case printed <- snap:
		case <-ctx.Done():
		}
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	go run()

	p := &snapshotPrinter{out: out}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			go run()
		case snap := <-printed:
			if err := p.print(snap); err != nil {
				return err
			}
		}
	}
}

// snapshotPrinter renders snapshots in ticket order and skips any that
// arrive after a newer one was printed.
type snapshotPrinter struct {
	out  io.Writer
	last uint64
}

func (p *snapshotPrinter) print(snap health.Snapshot) error {
	if snap.Ticket <= p.last {
		return nil
	}
	p.last = snap.Ticket
	return renderSnapshot(p.out, snap)
}

func renderSnapshot(out io.Writer, snap health.Snapshot) error {
	fmt.Fprintf(out, "%s  overall: %s\n", snap.CheckedAt.Local().Format(time.RFC3339), snap.Overall())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tLATENCY\tDETAIL")
	for _, r := range snap.Results {
		detail := r.Error
		if detail == "" && r.StatusCode != 0 {
			detail = fmt.Sprintf("HTTP %d", r.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\n", r.DisplayName, r.Status, r.LatencyMs, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}
