package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"curator/internal/clix"
	"curator/internal/inputprocessor"
	"curator/internal/models"
)

var (
	curateProfile      string
	curateAge          string
	curateJurisdiction string
	curateSensitivity  string
	curateParental     string
	curateStrategy     string
	curateSource       string
	curateJSON         bool
)

var curateCmd = &cobra.Command{
	Use:   "curate <text|file|directory|url>",
	Short: "Decide whether content should be shown to a user",
	Long: `Runs content through the curation pipeline for one user profile and prints
the decision. The input may be literal text, a text/markdown/html file, a
directory of such files, or an http(s) URL.

The user is either a configured profile (--profile) or described inline with
--age, --jurisdiction, --vulnerability, --sensitivity and --parental.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if curateStrategy != "" {
			if _, err := appInstance.Engine.SetStrategy(curateStrategy); err != nil {
				return err
			}
		}

		var factors []models.VulnerabilityFactor
		for _, f := range clix.ParseList(cmd.Flags(), "vulnerability") {
			factors = append(factors, models.VulnerabilityFactor(f))
		}
		if curateProfile != "" && (cmd.Flags().Changed("age") || len(factors) > 0) {
			return fmt.Errorf("--profile can't be combined with inline user flags")
		}
		uc, err := appInstance.ResolveUserContext(ctx, curateProfile, models.UserContext{
			AgeCategory:          models.AgeCategory(curateAge),
			Jurisdiction:         curateJurisdiction,
			VulnerabilityFactors: factors,
			SensitivityLevel:     models.SensitivityLevel(curateSensitivity),
			ParentalControlLevel: models.ParentalControlLevel(curateParental),
		})
		if err != nil {
			return err
		}

		inputs, err := appInstance.Input.Process(ctx, args[0])
		if err != nil {
			return err
		}

		type outcome struct {
			Origin string                 `json:"origin,omitempty"`
			Result *models.CurationResult `json:"result,omitempty"`
			Error  string                 `json:"error,omitempty"`
		}
		var outcomes []outcome
		failed := 0
		for _, in := range inputs {
			item := in.Item
			if curateSource != "" {
				item.SourceHint = curateSource
			}
			res, err := appInstance.Engine.Curate(ctx, item, uc)
			if err != nil {
				failed++
				log.WithError(err).WithField("origin", in.Origin).Debug("curation failed")
				outcomes = append(outcomes, outcome{Origin: in.Origin, Error: err.Error()})
				if !curateJSON {
					printCurateError(in, err)
				}
				continue
			}
			outcomes = append(outcomes, outcome{Origin: in.Origin, Result: &res})
			if !curateJSON {
				printCurateResult(in, res, len(inputs) > 1)
			}
		}

		if curateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if len(outcomes) == 1 && outcomes[0].Result != nil {
				if err := enc.Encode(outcomes[0].Result); err != nil {
					return err
				}
			} else if err := enc.Encode(outcomes); err != nil {
				return err
			}
		}
		if failed == len(inputs) {
			return fmt.Errorf("no input could be curated")
		}
		return nil
	},
}

func actionString(a models.Action) string {
	switch a {
	case models.ActionAllow:
		return color.GreenString(strings.ToUpper(string(a)))
	case models.ActionCaution:
		return color.YellowString(strings.ToUpper(string(a)))
	case models.ActionBlock:
		return color.RedString(strings.ToUpper(string(a)))
	}
	return string(a)
}

func printCurateResult(in inputprocessor.Result, res models.CurationResult, showOrigin bool) {
	if showOrigin {
		fmt.Printf("%s\n", color.CyanString(in.Origin))
	}
	fmt.Printf("  Action:     %s\n", actionString(res.Action))
	fmt.Printf("  Reason:     %s\n", res.Reason)
	fmt.Printf("  Confidence: %.2f\n", res.Confidence)
	fmt.Printf("  Strategy:   %s (%s)\n", res.StrategyUsed, strings.Join(res.LayersInvoked, " -> "))
	if s := res.Classification.Scam; s != nil && s.IsScam {
		fmt.Printf("  Scam:       %s (%.2f) %s\n", s.ScamType, s.ScamConfidence, strings.Join(s.Indicators, ", "))
	}
	if s := res.Classification.Safety; s != nil && len(s.Warnings) > 0 {
		fmt.Printf("  Warnings:   %s\n", strings.Join(s.Warnings, ", "))
	}
	for _, le := range res.LayerErrors {
		fmt.Printf("  %s %s: %s\n", color.YellowString("Degraded"), le.Layer, le.Message)
	}
	if res.Escalated {
		fmt.Printf("  %s\n", color.MagentaString("Escalated for human review"))
	}
	fmt.Printf("  Time:       %dms\n", res.ProcessingTimeMs)
}

func printCurateError(in inputprocessor.Result, err error) {
	origin := in.Origin
	if origin == "" {
		origin = "input"
	}
	fmt.Printf("  - %s %s: %v\n", color.RedString("ERROR"), origin, err)
}

func init() {
	rootCmd.AddCommand(curateCmd)

	f := curateCmd.Flags()
	f.StringVarP(&curateProfile, "profile", "p", "", "Configured user profile to curate for")
	f.StringVar(&curateAge, "age", "", "Age category: under13, under16, under18 or adult (default adult)")
	f.StringVar(&curateJurisdiction, "jurisdiction", "", "ISO country code of the user, e.g. US")
	f.StringSlice("vulnerability", nil, "Vulnerability factors, comma separated (e.g. elderly,recentLoss)")
	f.StringVar(&curateSensitivity, "sensitivity", "", "Sensitivity level: low, medium or high (default medium)")
	f.StringVar(&curateParental, "parental", "", "Parental control level: none, minimal, moderate, strict or complete (default none)")
	f.StringVarP(&curateStrategy, "strategy", "s", "", "Strategy for this run: fast_only, full_reasoning or hybrid")
	f.StringVar(&curateSource, "source", "", "Source hint (domain) overriding the one derived from the input")
	f.BoolVar(&curateJSON, "json", false, "Print the decision as JSON")
}
