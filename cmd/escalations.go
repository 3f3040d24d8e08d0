package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"curator/internal/clix"
	"curator/internal/models"
	"curator/internal/store"
)

var (
	escalationStatus string
	reviewAction     string
	reviewReviewer   string
	reviewNote       string
)

var escalationsCmd = &cobra.Command{
	Use:     "escalations",
	Aliases: []string{"esc"},
	Short:   "Work the human review queue",
}

var escalationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalations, most urgent and oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}
		status := escalationStatus
		if status == "all" {
			status = ""
		}

		items, err := appInstance.Store.ListEscalations(cmd.Context(), store.EscalationFilter{
			Status: status,
			Limit:  pagination.Limit,
			Offset: pagination.Offset,
		})
		if err != nil {
			return fmt.Errorf("failed to list escalations: %w", err)
		}
		if len(items) == 0 {
			fmt.Println("No escalations found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Priority", "Status", "Provisional", "Reason", "Strategy", "Enqueued At", "Content"})
		table.SetBorder(true)
		table.SetRowLine(true)
		for _, it := range items {
			table.Append([]string{
				it.ID,
				priorityString(it.Priority),
				it.Status,
				string(it.ProvisionalAction),
				it.Reason,
				it.Strategy,
				it.EnqueuedAt.Local().Format("2006-01-02 15:04:05"),
				excerpt(it.Content.Text, 48),
			})
		}
		table.Render()
		return nil
	},
}

var escalationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one escalation with its partial classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		item, err := appInstance.Store.GetEscalation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

var escalationsReviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Close a pending escalation with a moderator verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		reviewer := reviewReviewer
		if reviewer == "" {
			reviewer = os.Getenv("USER")
		}
		item, err := appInstance.Engine.ReviewEscalation(cmd.Context(), args[0], models.EscalationReview{
			Action:     models.Action(strings.ToLower(reviewAction)),
			Reviewer:   reviewer,
			Note:       reviewNote,
			ReviewedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Escalation %s reviewed: %s by %s\n", item.ID, actionString(item.Review.Action), item.Review.Reviewer)
		return nil
	},
}

func priorityString(p models.Priority) string {
	switch p {
	case models.PriorityCritical:
		return color.RedString(p.String())
	case models.PriorityHigh:
		return color.YellowString(p.String())
	}
	return p.String()
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	rootCmd.AddCommand(escalationsCmd)
	escalationsCmd.AddCommand(escalationsListCmd, escalationsShowCmd, escalationsReviewCmd)

	escalationsListCmd.Flags().StringVar(&escalationStatus, "status", models.EscalationStatusPending, "Filter by status: pending, reviewed or all")
	escalationsListCmd.Flags().Int("limit", 20, "Maximum number of escalations")
	escalationsListCmd.Flags().Int("offset", 0, "Number of escalations to skip")

	escalationsReviewCmd.Flags().StringVarP(&reviewAction, "action", "a", "", "Verdict: allow, caution or block")
	escalationsReviewCmd.Flags().StringVar(&reviewReviewer, "reviewer", "", "Reviewer name (default $USER)")
	escalationsReviewCmd.Flags().StringVar(&reviewNote, "note", "", "Optional note stored with the verdict")
	_ = escalationsReviewCmd.MarkFlagRequired("action")

}
