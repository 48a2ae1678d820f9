package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/sitewarden/internal/shared/errors"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run an active scan against a tenant's site and ingest the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, _ := cmd.Flags().GetString("company")
		agentID, _ := cmd.Flags().GetString("agent")
		collectorName, _ := cmd.Flags().GetString("collector")

		if companyID == "" || agentID == "" {
			return fmt.Errorf("--company and --agent are required")
		}

		svcs, err := buildServices(cmd.Context(), collectorName)
		if err != nil {
			return err
		}
		defer svcs.close()

		outcome, err := svcs.scanner.Scan(cmd.Context(), companyID, agentID)
		if err != nil {
			if errors.IsAutomation(err) {
				return fmt.Errorf("could not reach %s: %w", companyID, err)
			}
			return err
		}

		fmt.Printf("%s Scanned %s\n", colorSuccess("✓"), outcome.URL)
		fmt.Printf("Score: %d  Grade: %s  Issues: %d\n", outcome.Score, colorGrade(outcome.Grade), outcome.IssuesSummary.Total)
		if outcome.IssuesSummary.Total > 0 {
			fmt.Println()
			for _, is := range outcome.Issues {
				fmt.Printf("  [%s] %s\n", colorSeverity(is.Severity), is.Title)
				if is.Details != "" {
					fmt.Printf("      %s\n", is.Details)
				}
				if is.Recommendation != "" {
					fmt.Printf("      %s %s\n", colorInfo("fix:"), is.Recommendation)
				}
			}
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("company", "", "Company ID of the tenant")
	scanCmd.Flags().String("agent", "", "Agent ID within the company")
	scanCmd.Flags().String("collector", "probe", "Collector to use: probe or browser")
}
