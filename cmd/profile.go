package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/surveyloom-cli/internal/analysis"
	"github.com/KaramelBytes/surveyloom-cli/internal/utils"
)

var (
	profInput      inputFlags
	profOutputPath string
	profFormat     string
	profSampleRows int
	profGroupBy    []string
	profCorr       bool
	profOutliers   bool
	profOutlierThr float64
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a survey export and produce a concise summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt := analysis.DefaultOptions()
		if profSampleRows >= 0 {
			opt.SampleRows = profSampleRows
		}
		opt.GroupBy = profGroupBy
		opt.Correlations = profCorr
		opt.Outliers = profOutliers
		if profOutlierThr > 0 {
			opt.OutlierThreshold = profOutlierThr
		}

		ds, err := profInput.read(path)
		if err != nil {
			return err
		}
		// A job file types the columns before profiling
		if profInput.job != "" {
			job, err := profInput.loadJob(ds)
			if err != nil {
				return err
			}
			if ds, err = ds.Configure(job.Schema); err != nil {
				return err
			}
		}
		rep, err := analysis.Profile(ds, filepath.Base(path), opt)
		if err != nil {
			return err
		}

		var out []byte
		switch strings.ToLower(profFormat) {
		case "", "markdown", "md":
			out = []byte(rep.Markdown())
		case "json":
			if out, err = utils.PrettyJSON(rep); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown or json)", profFormat)
		}
		if profOutputPath == "" {
			fmt.Println(string(out))
			return nil
		}
		if err := os.WriteFile(profOutputPath, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Wrote profile to %s\n", profOutputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the profile")
	profileCmd.Flags().StringVar(&profFormat, "format", "markdown", "output format: markdown | json")
	profileCmd.Flags().StringVar(&profInput.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	profileCmd.Flags().StringVar(&profInput.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	profileCmd.Flags().StringVar(&profInput.job, "job", "", "job file whose schema types the columns")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "number of sample rows to include")
	profileCmd.Flags().StringSliceVar(&profGroupBy, "group-by", nil, "comma-separated columns to group numeric means by")
	profileCmd.Flags().BoolVar(&profCorr, "correlations", true, "compute Pearson correlations among numeric columns")
	profileCmd.Flags().BoolVar(&profOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	profileCmd.Flags().Float64Var(&profOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}
