package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alawein/maglogic/internal/analysis"
	"github.com/alawein/maglogic/internal/batch"
	"github.com/alawein/maglogic/internal/config"
	"github.com/alawein/maglogic/internal/odt"
	"github.com/alawein/maglogic/internal/ovf"
)

var (
	configFile string
	outFile    string
	pattern    string
	workers    int
	region     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "maglogic",
		Short: "micromagnetic snapshot and table analysis",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [snapshot]",
		Short: "parse one field snapshot and run all analyzers",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVar(&outFile, "out", "", "write result JSON to file instead of stdout")

	tableCmd := &cobra.Command{
		Use:   "table [log]",
		Short: "parse a scalar time-series log and summarize its columns",
		Args:  cobra.ExactArgs(1),
		RunE:  runTable,
	}

	classifyCmd := &cobra.Command{
		Use:   "classify [snapshot]",
		Short: "reduce a region-averaged magnetization to a logic state",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassify,
	}
	classifyCmd.Flags().IntVar(&region, "region", -1, "domain label to average (-1 = whole grid)")

	batchCmd := &cobra.Command{
		Use:   "batch [dir]",
		Short: "analyze every snapshot in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().StringVar(&pattern, "pattern", "*.ovf", "snapshot filename pattern")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = config value)")
	batchCmd.Flags().StringVar(&outFile, "out", "", "write report JSON to file instead of stdout")

	rootCmd.AddCommand(analyzeCmd, tableCmd, classifyCmd, batchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configFile)
}

func analyzerOptions(cfg *config.Config) (analysis.DomainOptions, analysis.TopologyOptions, error) {
	dom, err := cfg.DomainOptions()
	if err != nil {
		return dom, analysis.TopologyOptions{}, err
	}
	top, err := cfg.TopologyOptions()
	return dom, top, err
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dom, top, err := analyzerOptions(cfg)
	if err != nil {
		return err
	}

	grid, err := ovf.ParseFile(args[0])
	if err != nil {
		return err
	}
	result, err := analysis.Analyze(grid, analysis.Options{Domain: dom, Topology: top})
	if err != nil {
		return err
	}

	if outFile != "" {
		return analysis.WriteJSON(result, outFile)
	}
	out, err := analysis.ToJSON(result)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runTable(cmd *cobra.Command, args []string) error {
	ts, err := odt.ParseFile(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "column\trows\tfirst\tlast\n")
	for _, name := range ts.Names {
		col := ts.Columns[name]
		if len(col) == 0 {
			fmt.Fprintf(w, "%s\t0\t-\t-\n", name)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%g\t%g\n", name, len(col), col[0], col[len(col)-1])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Columns named E_<term> are per-term total energies; summarize the
	// final recorded step as an energy breakdown.
	terms := map[string]float64{}
	for _, name := range ts.Names {
		term, ok := strings.CutPrefix(name, "E_")
		if !ok || ts.Rows == 0 {
			continue
		}
		col := ts.Columns[name]
		terms[term] = col[len(col)-1]
	}
	if len(terms) > 0 {
		ea := analysis.AggregateEnergyTotals(terms)
		fmt.Printf("\nenergy terms at final step: %v\n", ea.Terms)
		for _, term := range ea.Terms {
			fmt.Printf("  %s\t%g\n", term, ea.Totals[term])
		}
		fmt.Printf("  combined\t%g\n", ea.Total)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}
	dom, _, err := analyzerOptions(cfg)
	if err != nil {
		return err
	}

	grid, err := ovf.ParseFile(args[0])
	if err != nil {
		return err
	}

	if region < 0 {
		fmt.Println(classifier.Classify(grid.Average()))
		return nil
	}

	da, err := analysis.AnalyzeDomains(grid, dom)
	if err != nil {
		return err
	}
	state, ok := classifier.ClassifyRegion(grid, da.Labels, region)
	if !ok {
		return fmt.Errorf("region %d has no cells", region)
	}
	fmt.Println(state)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dom, top, err := analyzerOptions(cfg)
	if err != nil {
		return err
	}
	if workers == 0 {
		workers = cfg.Batch.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := &batch.Runner{Workers: workers}
	report, err := runner.RunDir(ctx, args[0], pattern, batch.Options{Domain: dom, Topology: top})
	if err != nil {
		return err
	}

	var enc *json.Encoder
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		enc = json.NewEncoder(f)
	} else {
		enc = json.NewEncoder(os.Stdout)
	}
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
