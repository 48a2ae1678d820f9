package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	sharedErrors "github.com/wardenhq/sitewarden/internal/shared/errors"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show or reset a tenant's security posture report",
	RunE: func(cmd *cobra.Command, args []string) error {
		companyID, _ := cmd.Flags().GetString("company")
		agentID, _ := cmd.Flags().GetString("agent")
		reset, _ := cmd.Flags().GetBool("reset")

		if companyID == "" || agentID == "" {
			return fmt.Errorf("--company and --agent are required")
		}

		svcs, err := buildServices(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer svcs.close()

		if reset {
			if err := svcs.aggregator.Reset(cmd.Context(), companyID, agentID); err != nil {
				return err
			}
			fmt.Printf("%s Report and scan history for %s/%s deleted\n", colorSuccess("✓"), companyID, agentID)
			return nil
		}

		view, err := svcs.aggregator.View(cmd.Context(), companyID, agentID)
		if err != nil {
			if errors.Is(err, sharedErrors.ErrReportNotFound) {
				fmt.Printf("%s No scans ingested yet for %s/%s\n", colorWarn("!"), companyID, agentID)
				return nil
			}
			return err
		}

		rep := view.Report
		fmt.Println(colorInfo("Security Posture Report"))
		fmt.Printf("Tenant: %s/%s\n", rep.CompanyID, rep.AgentID)
		fmt.Printf("Score: %d  Grade: %s  Scans: %d  Last scan: %s\n",
			rep.Score, colorGrade(rep.Grade), rep.ScanCount, rep.LastScanAt.Format("2006-01-02 15:04 MST"))
		s := rep.IssuesSummary
		fmt.Printf("Issues: %s critical, %s high, %s medium, %s low (%d total)\n",
			colorError(fmt.Sprintf("%d", s.Critical)),
			colorError(fmt.Sprintf("%d", s.High)),
			colorWarn(fmt.Sprintf("%d", s.Medium)),
			colorInfo(fmt.Sprintf("%d", s.Low)),
			s.Total)

		if len(rep.LatestIssues) > 0 {
			fmt.Println()
			fmt.Println(colorInfo("Latest Findings"))
			for _, is := range rep.LatestIssues {
				fmt.Printf("  [%s] %s\n", colorSeverity(is.Severity), is.Title)
			}
		}

		if len(rep.ScoreHistory) > 0 {
			fmt.Println()
			fmt.Println(colorInfo("Score History"))
			for _, entry := range rep.ScoreHistory {
				fmt.Printf("  %s  %3d  %s\n", entry.Date, entry.Score, colorGrade(entry.Grade))
			}
		}

		if len(view.RecentScans) > 0 {
			fmt.Println()
			fmt.Println(colorInfo("Recent Scans"))
			for _, rec := range view.RecentScans {
				fmt.Printf("  %s  %s  %d issue(s)  %s\n",
					rec.CreatedAt.Format("2006-01-02 15:04"), rec.ScanID, rec.IssueCount, rec.PageURL)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("company", "", "Company ID of the tenant")
	reportCmd.Flags().String("agent", "", "Agent ID within the company")
	reportCmd.Flags().Bool("reset", false, "Delete the report and all scan records for the pair")
}
