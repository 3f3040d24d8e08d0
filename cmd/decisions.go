package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"curator/internal/clix"
	"curator/internal/models"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show the decision audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}
		recs, err := appInstance.Store.ListDecisions(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list decisions: %w", err)
		}
		if len(recs) == 0 {
			fmt.Println("No decisions recorded.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Time", "Action", "Confidence", "Strategy", "Escalated", "Ms", "Content ID", "Reason"})
		table.SetBorder(true)
		for _, r := range recs {
			escalated := ""
			if r.Escalated {
				escalated = "yes"
			}
			table.Append([]string{
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				actionString(r.Action),
				fmt.Sprintf("%.2f", r.Confidence),
				r.Strategy,
				escalated,
				fmt.Sprintf("%d", r.ProcessingTimeMs),
				excerpt(r.ContentID, 32),
				r.Reason,
			})
		}
		table.Render()
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize decisions, open escalations and reasoning spend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}
		st, err := appInstance.Store.DecisionStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to load decision stats: %w", err)
		}
		pending, err := appInstance.Store.CountEscalations(ctx, models.EscalationStatusPending)
		if err != nil {
			return fmt.Errorf("failed to count escalations: %w", err)
		}

		fmt.Printf("Decisions:           %d (%d escalated)\n", st.Total, st.Escalated)
		actions := make([]string, 0, len(st.ByAction))
		for a := range st.ByAction {
			actions = append(actions, string(a))
		}
		sort.Strings(actions)
		for _, a := range actions {
			fmt.Printf("  %-8s %d\n", actionString(models.Action(a)), st.ByAction[models.Action(a)])
		}
		fmt.Printf("Pending escalations: %d\n", pending)

		// spend is tracked per process, so this covers the current run only
		cost, err := appInstance.CostTracker.Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Reasoning spend:     $%.6f over %d calls\n", cost.TotalUSD, cost.Calls)
		for _, p := range cost.Providers() {
			fmt.Printf("  %-8s $%.6f\n", p, cost.ByProvider[p])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decisionsCmd, statsCmd)
	decisionsCmd.Flags().Int("limit", 20, "Maximum number of decisions")
	decisionsCmd.Flags().Int("offset", 0, "Number of decisions to skip")
}
