package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	schemaInput  inputFlags
	schemaOutput string
)

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Write a job file with the suggested column schema and cleaning defaults",
	Long: `Inspect the header of a survey export and print a YAML job skeleton: the
suggested type and role of every column plus the configured cleaning defaults.
Edit the file and pass it to "clean" or "weights" with --job.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := schemaInput.read(args[0])
		if err != nil {
			return err
		}
		job, err := schemaInput.loadJob(ds)
		if err != nil {
			return err
		}
		if schemaOutput != "" {
			if err := job.Save(schemaOutput); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote job for %d columns to %s\n", len(job.Schema), schemaOutput)
			return nil
		}
		b, err := job.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "path to write the job YAML (default stdout)")
	schemaCmd.Flags().StringVar(&schemaInput.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	schemaCmd.Flags().StringVar(&schemaInput.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	schemaCmd.Flags().StringVar(&schemaInput.job, "job", "", "existing job file to merge defaults into")
}
