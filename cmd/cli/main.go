package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"metastats/adapters/figures"
	"metastats/adapters/stats/engine"
	"metastats/adapters/tabular"
	"metastats/app"
	"metastats/domain/core"
	"metastats/domain/prepare"
	"metastats/domain/stats"
	"metastats/domain/table"
	"metastats/internal/memo"
	"metastats/internal/testkit"
	"metastats/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "metastats-cli",
		Short: "Metabolomics feature intensity comparison from the command line",
	}

	rootCmd.AddCommand(
		newDemoCmd(),
		newPrepareCmd(),
		newAnovaCmd(),
		newTukeyCmd(),
		newTTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// prepareFlags carries the pipeline options shared by every analysis command.
type prepareFlags struct {
	blankAttribute string
	blankLevel     string
	cutoff         float64
	seed           int64
	skipImpute     bool
}

func addPrepareFlags(cmd *cobra.Command, f *prepareFlags) {
	cmd.Flags().StringVar(&f.blankAttribute, "blank-attribute", testkit.SampleTypeAttribute,
		"Metadata attribute whose level marks blank runs")
	cmd.Flags().StringVar(&f.blankLevel, "blank-level", "",
		"Blank level; empty skips blank filtering")
	cmd.Flags().Float64Var(&f.cutoff, "cutoff", prepare.DefaultBlankCutoff,
		"Blank/sample intensity ratio at which a feature counts as background")
	cmd.Flags().Int64Var(&f.seed, "seed", 42,
		"Random seed for deterministic imputation")
	cmd.Flags().BoolVar(&f.skipImpute, "no-impute", false,
		"Leave zeros in place instead of imputing below the LOD")
}

// runPipeline loads both tables and walks them through cleanup, optional
// blank filtering, imputation, and submission.
func runPipeline(ctx context.Context, featurePath, metaPath string, f prepareFlags) (app.Session, error) {
	readers := ports.ReaderFactory(func(path string) ports.TableReaderPort {
		return tabular.NewDataReader(path)
	})
	kit := testkit.NewTestKit()
	prep := app.NewPrepareService(readers, kit.RNGAdapter(), f.cutoff, f.seed)

	sess, err := prep.LoadFiles(ctx, app.NewSession(), featurePath, metaPath)
	if err != nil {
		return app.Session{}, fmt.Errorf("cleanup failed: %w", err)
	}

	if f.blankLevel != "" {
		sess, err = prep.FilterBlanks(ctx, sess, f.blankAttribute, f.blankLevel, f.cutoff)
		if err != nil {
			return app.Session{}, fmt.Errorf("blank filtering failed: %w", err)
		}
	}

	if !f.skipImpute {
		sess, err = prep.Impute(ctx, sess, f.seed)
		if err != nil {
			return app.Session{}, fmt.Errorf("imputation failed: %w", err)
		}
	}

	sess, err = prep.Submit(ctx, sess)
	if err != nil {
		return app.Session{}, fmt.Errorf("submit failed: %w", err)
	}
	return sess, nil
}

func newCompare() *app.CompareService {
	return app.NewCompareService(engine.NewStatsEngine(), memo.New(memo.DefaultCapacity), nil)
}

func printSummary(sess app.Session) {
	fmt.Printf("\n📊 PREPARE PIPELINE\n")
	for _, stage := range sess.Summary.Stages {
		fmt.Printf("  %-14s %4d features × %d samples\n", stage.Stage, stage.Features, stage.Samples)
	}
	if sess.Summary.BlankFiltered {
		fmt.Printf("  background removed: %d, kept: %d\n",
			sess.Summary.BackgroundCount, sess.Summary.RealCount)
	}
	if sess.Summary.Imputed {
		fmt.Printf("  limit of detection: %.4g\n", sess.Summary.LOD)
	}
}

func printSkipped(skipped []stats.SkippedFeature) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("\n⚠️  SKIPPED FEATURES (%d):\n", len(skipped))
	show := skipped
	if len(show) > 5 {
		show = show[:5]
	}
	for _, s := range show {
		fmt.Printf("  • %s: %s", s.Feature, s.Reason)
		if s.Detail != "" {
			fmt.Printf(" (%s)", s.Detail)
		}
		fmt.Println()
	}
	if len(skipped) > 5 {
		fmt.Printf("  ... and %d more\n", len(skipped)-5)
	}
}

// writeExport saves a battery next to the terminal output; the extension
// picks the format.
func writeExport(path string, e tabular.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return tabular.WriteXLSX(f, e)
	}
	return tabular.WriteCSV(f, e)
}

// chartBoxLimit caps how many per-feature boxplots a chart report carries.
const chartBoxLimit = 6

type chartHit struct {
	feature    core.FeatureKey
	correctedP float64
}

func buildBoxes(sess app.Session, attribute string, hits []chartHit) []stats.BoxplotData {
	boxes := make([]stats.BoxplotData, 0, len(hits))
	for _, h := range hits {
		groups, err := stats.FeatureGroupValues(sess.Matrix, sess.Meta, attribute, h.feature)
		if err != nil {
			continue
		}
		boxes = append(boxes, stats.NewBoxplotData(h.feature, groups, h.correctedP))
	}
	return boxes
}

// writeChartReport renders the volcano plus boxplots for the strongest hits
// into one standalone HTML file.
func writeChartReport(path, title, xLabel string, series stats.VolcanoSeries, boxes []stats.BoxplotData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := figures.NewRenderer().ResultsPage(f, title, xLabel, series, boxes); err != nil {
		return fmt.Errorf("failed to render charts: %w", err)
	}
	return nil
}

func newDemoCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write the generated demo dataset as CSV files",
		Long: `Generates a synthetic metabolomics study and writes it to disk:
features.csv, metadata.csv, and manifest.json describing what was planted.

Example: metastats-cli demo --dir ./demo-data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kit := testkit.NewTestKit()
			rawFT, rawMD, manifest := kit.DemoUpload()

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			featuresPath := filepath.Join(dir, "features.csv")
			metaPath := filepath.Join(dir, "metadata.csv")
			manifestPath := filepath.Join(dir, "manifest.json")

			if err := writeRawCSV(featuresPath, rawFT); err != nil {
				return err
			}
			if err := writeRawCSV(metaPath, rawMD); err != nil {
				return err
			}

			data, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize manifest: %w", err)
			}
			if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}

			fmt.Printf("✅ Demo dataset written\n")
			fmt.Printf("  features: %s (%d rows)\n", featuresPath, len(rawFT.Rows))
			fmt.Printf("  metadata: %s (%d rows)\n", metaPath, len(rawMD.Rows))
			fmt.Printf("  manifest: %s\n", manifestPath)
			fmt.Printf("\nTry: metastats-cli anova %s %s --attribute %s --blank-level %s\n",
				featuresPath, metaPath, testkit.TreatmentAttribute, testkit.SampleTypeBlank)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./demo-data", "Output directory")
	return cmd
}

func writeRawCSV(path string, raw table.RawTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(raw.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range raw.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func newPrepareCmd() *cobra.Command {
	var f prepareFlags
	var out string

	cmd := &cobra.Command{
		Use:   "prepare [features-file] [metadata-file]",
		Short: "Run the cleanup pipeline and report what it did",
		Long: `Cleans and reconciles the two tables, optionally filters background
features against blank runs, imputes missing values, and prints the
resulting dimensions.

Example: metastats-cli prepare features.csv metadata.csv --blank-level Blank`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := runPipeline(cmd.Context(), args[0], args[1], f)
			if err != nil {
				return err
			}

			printSummary(sess)
			fmt.Printf("\n✅ PREPARED: %d features × %d samples ready for comparison\n",
				sess.Feature.FeatureCount(), sess.Feature.SampleCount())

			if out != "" {
				if err := writeExport(out, tabular.TableExport(&sess.Feature)); err != nil {
					return err
				}
				fmt.Printf("💾 Cleaned table saved to: %s\n", out)
			}
			return nil
		},
	}

	addPrepareFlags(cmd, &f)
	cmd.Flags().StringVar(&out, "out", "", "Write the cleaned feature table (.csv or .xlsx)")
	return cmd
}

func newAnovaCmd() *cobra.Command {
	var f prepareFlags
	var attribute, out, chartsOut string
	var top int

	cmd := &cobra.Command{
		Use:   "anova [features-file] [metadata-file]",
		Short: "One-way ANOVA across all levels of one attribute",
		Long: `Runs the prepare pipeline, then tests every feature for an intensity
difference across the attribute's levels. Rows are sorted by raw p-value
and corrected with Bonferroni.

Example: metastats-cli anova features.csv metadata.csv --attribute ATTRIBUTE_Treatment`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := runPipeline(ctx, args[0], args[1], f)
			if err != nil {
				return err
			}
			printSummary(sess)

			res, err := newCompare().Anova(ctx, sess, attribute)
			if err != nil {
				return fmt.Errorf("anova failed: %w", err)
			}

			sig := len(res.SignificantFeatures())
			fmt.Printf("\n📊 ONE-WAY ANOVA: %s\n", table.DisplayName(res.Attribute))
			fmt.Printf("Tested: %d  Significant: %d\n\n", res.TestedCount, sig)

			rows := res.Rows
			if top > 0 && len(rows) > top {
				rows = rows[:top]
			}
			fmt.Printf("%-20s %12s %10s %12s\n", "metabolite", "p", "F", "p_bonferroni")
			for _, row := range rows {
				marker := ""
				if row.Significant {
					marker = "  *"
				}
				fmt.Printf("%-20s %12.4g %10.3f %12.4g%s\n",
					row.Feature, row.PValue, row.FStatistic, row.PCorrected, marker)
			}

			printSkipped(res.Skipped)

			if out != "" {
				if err := writeExport(out, tabular.AnovaExport(res)); err != nil {
					return err
				}
				fmt.Printf("\n💾 Results saved to: %s\n", out)
			}
			if chartsOut != "" {
				hits := make([]chartHit, 0, chartBoxLimit)
				for _, row := range res.Rows {
					if row.Significant {
						hits = append(hits, chartHit{row.Feature, row.PCorrected})
						if len(hits) == chartBoxLimit {
							break
						}
					}
				}
				title := "One-way ANOVA over " + table.DisplayName(res.Attribute)
				if err := writeChartReport(chartsOut, title, "ln(F)",
					stats.AnovaVolcano(res.Rows), buildBoxes(sess, attribute, hits)); err != nil {
					return err
				}
				fmt.Printf("📈 Charts saved to: %s\n", chartsOut)
			}
			return nil
		},
	}

	addPrepareFlags(cmd, &f)
	cmd.Flags().StringVar(&attribute, "attribute", "", "Metadata attribute to group by (required)")
	cmd.Flags().StringVar(&out, "out", "", "Write the full battery (.csv or .xlsx)")
	cmd.Flags().StringVar(&chartsOut, "charts", "", "Write volcano and top-hit boxplots as one HTML file")
	cmd.Flags().IntVar(&top, "top", 20, "Rows to print; 0 prints everything")
	cmd.MarkFlagRequired("attribute")
	return cmd
}

func newTukeyCmd() *cobra.Command {
	var f prepareFlags
	var attribute, levelA, levelB, out, chartsOut string

	cmd := &cobra.Command{
		Use:   "tukey [features-file] [metadata-file]",
		Short: "Tukey HSD contrast between two levels, gated on ANOVA",
		Long: `Runs one-way ANOVA first, then contrasts the two chosen levels for
the ANOVA-significant features only.

Example: metastats-cli tukey features.csv metadata.csv --attribute ATTRIBUTE_Treatment --level-a control --level-b treated`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := runPipeline(ctx, args[0], args[1], f)
			if err != nil {
				return err
			}
			printSummary(sess)

			res, err := newCompare().Tukey(ctx, sess, attribute, [2]string{levelA, levelB})
			if err != nil {
				return fmt.Errorf("tukey failed: %w", err)
			}

			fmt.Printf("\n📊 TUKEY HSD: %s vs %s over %s\n",
				res.Levels[0], res.Levels[1], table.DisplayName(res.Attribute))
			fmt.Printf("Tested: %d\n\n", res.TestedCount)

			fmt.Printf("%-20s %12s %12s %12s %10s %10s\n",
				"metabolite", "diff", "p_tukey", "p_bonferroni", "mean_A", "mean_B")
			for _, row := range res.Rows {
				marker := ""
				if row.Significant {
					marker = "  *"
				}
				fmt.Printf("%-20s %12.4g %12.4g %12.4g %10.3f %10.3f%s\n",
					row.Feature, row.Diff, row.PValue, row.PCorrected, row.MeanA, row.MeanB, marker)
			}

			printSkipped(res.Skipped)

			if out != "" {
				if err := writeExport(out, tabular.TukeyExport(res)); err != nil {
					return err
				}
				fmt.Printf("\n💾 Results saved to: %s\n", out)
			}
			if chartsOut != "" {
				hits := make([]chartHit, 0, chartBoxLimit)
				for _, row := range res.Rows {
					if row.Significant {
						hits = append(hits, chartHit{row.Feature, row.PCorrected})
						if len(hits) == chartBoxLimit {
							break
						}
					}
				}
				title := "Tukey HSD " + res.Levels[0] + " vs " + res.Levels[1]
				if err := writeChartReport(chartsOut, title, "mean difference",
					stats.TukeyVolcano(res.Rows), buildBoxes(sess, attribute, hits)); err != nil {
					return err
				}
				fmt.Printf("📈 Charts saved to: %s\n", chartsOut)
			}
			return nil
		},
	}

	addPrepareFlags(cmd, &f)
	cmd.Flags().StringVar(&attribute, "attribute", "", "Metadata attribute to group by (required)")
	cmd.Flags().StringVar(&levelA, "level-a", "", "First level (required)")
	cmd.Flags().StringVar(&levelB, "level-b", "", "Second level (required)")
	cmd.Flags().StringVar(&out, "out", "", "Write the full battery (.csv or .xlsx)")
	cmd.Flags().StringVar(&chartsOut, "charts", "", "Write volcano and top-hit boxplots as one HTML file")
	cmd.MarkFlagRequired("attribute")
	cmd.MarkFlagRequired("level-a")
	cmd.MarkFlagRequired("level-b")
	return cmd
}

func newTTestCmd() *cobra.Command {
	var f prepareFlags
	var attribute, groupA, groupB, out, chartsOut string
	var paired bool
	var top int

	cmd := &cobra.Command{
		Use:   "ttest [features-file] [metadata-file]",
		Short: "Two-group t-test (Welch by default, optionally paired)",
		Long: `Compares two levels of one attribute per feature. Welch's unequal
variance test is the default; --paired requires equal group sizes.

Example: metastats-cli ttest features.csv metadata.csv --attribute ATTRIBUTE_Treatment --group-a control --group-b treated`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := runPipeline(ctx, args[0], args[1], f)
			if err != nil {
				return err
			}
			printSummary(sess)

			res, err := newCompare().TTest(ctx, sess, attribute, groupA, groupB, paired)
			if err != nil {
				return fmt.Errorf("t-test failed: %w", err)
			}

			variant := "Welch"
			if res.Paired {
				variant = "paired"
			}
			sig := 0
			for _, row := range res.Rows {
				if row.Significant {
					sig++
				}
			}
			fmt.Printf("\n📊 T-TEST (%s): %s vs %s over %s\n",
				variant, res.GroupA, res.GroupB, table.DisplayName(res.Attribute))
			fmt.Printf("Tested: %d  Significant: %d\n\n", res.TestedCount, sig)

			rows := res.Rows
			if top > 0 && len(rows) > top {
				rows = rows[:top]
			}
			fmt.Printf("%-20s %10s %12s %12s\n", "metabolite", "T", "p", "p_bonferroni")
			for _, row := range rows {
				marker := ""
				if row.Significant {
					marker = "  *"
				}
				fmt.Printf("%-20s %10.3f %12.4g %12.4g%s\n",
					row.Feature, row.Statistic, row.PValue, row.PCorrected, marker)
			}

			printSkipped(res.Skipped)

			if out != "" {
				if err := writeExport(out, tabular.TTestExport(res)); err != nil {
					return err
				}
				fmt.Printf("\n💾 Results saved to: %s\n", out)
			}
			if chartsOut != "" {
				hits := make([]chartHit, 0, chartBoxLimit)
				for _, row := range res.Rows {
					if row.Significant {
						hits = append(hits, chartHit{row.Feature, row.PCorrected})
						if len(hits) == chartBoxLimit {
							break
						}
					}
				}
				title := "t-test " + res.GroupA + " vs " + res.GroupB
				if err := writeChartReport(chartsOut, title, "t statistic",
					stats.TTestVolcano(res.Rows), buildBoxes(sess, attribute, hits)); err != nil {
					return err
				}
				fmt.Printf("📈 Charts saved to: %s\n", chartsOut)
			}
			return nil
		},
	}

	addPrepareFlags(cmd, &f)
	cmd.Flags().StringVar(&attribute, "attribute", "", "Metadata attribute to group by (required)")
	cmd.Flags().StringVar(&groupA, "group-a", "", "First level (required)")
	cmd.Flags().StringVar(&groupB, "group-b", "", "Second level (required)")
	cmd.Flags().BoolVar(&paired, "paired", false, "Use the paired test (equal group sizes required)")
	cmd.Flags().StringVar(&out, "out", "", "Write the full battery (.csv or .xlsx)")
	cmd.Flags().StringVar(&chartsOut, "charts", "", "Write volcano and top-hit boxplots as one HTML file")
	cmd.Flags().IntVar(&top, "top", 20, "Rows to print; 0 prints everything")
	cmd.MarkFlagRequired("attribute")
	cmd.MarkFlagRequired("group-a")
	cmd.MarkFlagRequired("group-b")
	return cmd
}
