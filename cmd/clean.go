package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/surveyloom-cli/internal/ingest"
	"github.com/KaramelBytes/surveyloom-cli/internal/utils"
)

var (
	cleanInput   inputFlags
	cleanOutput  string
	cleanSummary string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Run the cleaning modules over a survey export",
	Long: `Apply the job's schema and run the enabled cleaning modules in order:
deduplication, missing values, outliers, invalid data, straight-liners, speeders.
The cleaned rows are written as CSV; Ctrl-C stops the run between modules.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		cleanInput.seedSet = cmd.Flags().Changed("seed")
		s, _, err := cleanFile(ctx, path, &cleanInput)
		if err != nil {
			return err
		}
		sum := s.Cleaning()
		printSummary(sum)

		out := cleanOutput
		if out == "" {
			out = defaultOutput(path, "cleaned", ".csv")
		}
		if err := ingest.WriteCSVFile(out, s.Processed()); err != nil {
			return err
		}
		fmt.Printf("✓ Wrote %d rows to %s\n", s.Processed().Len(), out)

		if cleanSummary != "" {
			b, err := utils.PrettyJSON(s.LastRun())
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(cleanSummary, b); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote run summary to %s\n", cleanSummary)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanInput.job, "job", "", "job file with schema and cleaning settings (see \"schema\")")
	cleanCmd.Flags().StringVar(&cleanInput.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cleanCmd.Flags().StringVar(&cleanInput.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "cleaned CSV path (default <file>_cleaned.csv)")
	cleanCmd.Flags().StringVar(&cleanSummary, "summary", "", "optional path to write the run summary as JSON")
	cleanCmd.Flags().Int64Var(&cleanInput.seed, "seed", 0, "seed for randomized methods (overrides config)")
}
