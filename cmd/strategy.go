package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Inspect curation strategies",
	Long: `Lists the available strategies and their thresholds. The active strategy of a
running server is switched with POST /api/v1/strategy; for one-off runs use
"curate --strategy".`,
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List strategies, their layers and thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Strategy", "Layers", "Sufficient", "Block Below", "Description"})
		table.SetBorder(true)
		table.SetRowLine(true)
		table.SetAutoWrapText(true)
		for _, s := range appInstance.Engine.Strategies() {
			name := s.Name
			if s.Active {
				name = color.GreenString(name + " *")
			}
			table.Append([]string{
				name,
				strings.Join(s.Layers, " -> "),
				fmt.Sprintf("%.2f", s.Thresholds.SufficientConfidence),
				fmt.Sprintf("%.2f", s.Thresholds.BlockThreshold),
				s.Description,
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.AddCommand(strategyListCmd)
}
