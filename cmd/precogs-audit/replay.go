package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	replayDomain string
	replayURL    string
	replayJSON   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay anchor validation against stored snapshots",
	Long: `replay re-runs the validator over stored snapshots and prints per-page
reports. With --domain and --url it validates a single page and prints the
full per-fact report; without them it sweeps every snapshot and prints one
summary line per page.

Validation runs are recorded in the database like daemon-triggered runs.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDomain, "domain", "", "validate a single page: its domain")
	replayCmd.Flags().StringVar(&replayURL, "url", "", "validate a single page: its URL")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "emit reports as JSON")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx := cmd.Context()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	// Single page: full report.
	if replayURL != "" {
		report, err := svc.Validate(ctx, replayDomain, replayURL)
		if err != nil {
			return err
		}
		if replayJSON {
			return enc.Encode(report)
		}
		fmt.Printf("%s: validated=%d passed=%d failed=%d pass_rate=%.3f citation_grade=%v\n",
			report.SourceURL, report.Validated, report.Passed, report.Failed,
			report.PassRate, report.CitationGrade)
		for _, f := range report.Failures {
			fmt.Printf("  FAIL %s rev=%d %s: %s\n", f.FactID, f.Revision, f.Kind, f.Detail)
		}
		return nil
	}

	// Sweep everything.
	results, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	if replayJSON {
		return enc.Encode(results)
	}
	failedPages := 0
	for _, r := range results {
		if r.Error != "" {
			failedPages++
			fmt.Printf("%s: ERROR %s\n", r.SourceURL, r.Error)
			continue
		}
		fmt.Printf("%s: validated=%d passed=%d failed=%d pass_rate=%.3f citation_grade=%v\n",
			r.SourceURL, r.Validated, r.Passed, r.Failed, r.PassRate, r.CitationGrade)
	}
	if failedPages > 0 {
		return fmt.Errorf("%d pages failed structurally", failedPages)
	}
	return nil
}
