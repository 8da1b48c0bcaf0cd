package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/surveyloom-cli/internal/suggest"
	"github.com/KaramelBytes/surveyloom-cli/internal/utils"
	"github.com/KaramelBytes/surveyloom-cli/internal/weights"
)

var (
	wInput   inputFlags
	wSuggest bool
	wSet     []string
	wLock    []string
	wUndo    int
	wOutput  string
)

var weightsCmd = &cobra.Command{
	Use:   "weights <file>",
	Short: "Clean a survey export and balance the response-column weights",
	Long: `Clean the file as "clean" does, then start an equal split over the response
columns and apply edits in this order: --suggest (or the job's weights), locks
from the job and --lock, each --set col=value, then --undo steps. Every edit
spreads its change over the unlocked columns so the total stays at 100. The
final vector is committed only if it sums to 100 ± 0.1.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edits, err := parseSets(wSet)
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		s, job, err := cleanFile(ctx, args[0], &wInput)
		if err != nil {
			return err
		}
		printSummary(s.Cleaning())
		e, err := s.EnterWeighting()
		if err != nil {
			return err
		}

		switch {
		case wSuggest:
			sugg, err := suggest.Weights(ctx, s.Processed(), e.Columns())
			if err != nil {
				return err
			}
			if err := e.ApplySuggestion(suggest.ToVector(sugg)); err != nil {
				return err
			}
			for _, sg := range sugg {
				fmt.Printf("  suggest %-20s %6.1f  %s\n", sg.Column, sg.Weight, sg.Reason)
			}
		case len(job.Weights) > 0:
			if err := e.ApplySuggestion(weights.Vector(job.Weights)); err != nil {
				return err
			}
		}
		for _, c := range append(append([]string(nil), job.Locked...), wLock...) {
			if err := e.Lock(c); err != nil {
				return err
			}
		}
		for _, ed := range edits {
			changed, err := e.SetWeight(ed.column, ed.value)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Printf("⚠ %s=%g left the weights unchanged\n", ed.column, ed.value)
			}
		}
		for i := 0; i < wUndo; i++ {
			if err := e.Undo(); err != nil {
				return err
			}
		}

		printWeights(e.State())
		committed, err := s.CommitWeights()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Committed weights for %d columns\n", len(committed))

		if wOutput != "" {
			b, err := utils.PrettyJSON(s.Snapshot())
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(wOutput, b); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote session snapshot to %s\n", wOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)
	weightsCmd.Flags().StringVar(&wInput.job, "job", "", "job file with schema, cleaning settings, weights and locks")
	weightsCmd.Flags().StringVar(&wInput.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	weightsCmd.Flags().StringVar(&wInput.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	weightsCmd.Flags().BoolVar(&wSuggest, "suggest", false, "start from weights suggested by column completeness and spread")
	weightsCmd.Flags().StringArrayVar(&wSet, "set", nil, "set a column weight, col=value (repeatable, applied in order)")
	weightsCmd.Flags().StringSliceVar(&wLock, "lock", nil, "columns to lock before --set edits")
	weightsCmd.Flags().IntVar(&wUndo, "undo", 0, "number of edits to undo before committing")
	weightsCmd.Flags().StringVarP(&wOutput, "output", "o", "", "optional path to write the session snapshot as JSON")
}

type weightEdit struct {
	column string
	value  float64
}

func parseSets(sets []string) ([]weightEdit, error) {
	out := make([]weightEdit, 0, len(sets))
	for _, s := range sets {
		col, val, ok := strings.Cut(s, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --set %q (use col=value)", s)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", s, err)
		}
		out = append(out, weightEdit{column: col, value: f})
	}
	return out, nil
}

func printWeights(st weights.State) {
	locked := make(map[string]bool, len(st.Locked))
	for _, c := range st.Locked {
		locked[c] = true
	}
	for _, c := range st.Columns {
		mark := ""
		if locked[c] {
			mark = " (locked)"
		}
		fmt.Printf("  %-20s %6.2f%s\n", c, st.Weights[c], mark)
	}
	fmt.Printf("  %-20s %6.2f\n", "total", st.Total)
}
