// Command insight runs the insight pipeline from the terminal, either
// against Gemini or over a saved model reply.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockinsight/backend-go/internal/config"
	"stockinsight/backend-go/internal/insight"
	"stockinsight/backend-go/internal/logging"
	"stockinsight/backend-go/internal/models"
	"stockinsight/backend-go/internal/services"
)

type analyzeOptions struct {
	points    int
	window    string
	replyFile string
	asJSON    bool
	verbose   bool
}

func main() {
	_ = godotenv.Load(".env", ".env.local")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "insight",
		Short:        "Generate grounded stock reports",
		SilenceUsage: true,
	}
	root.AddCommand(newAnalyzeCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <TICKER>",
		Short: "Build a report for one ticker",
		Long: `Queries the configured Gemini model with search grounding and prints
the validated report. With --reply-file the model call is skipped and the
saved reply text is parsed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.points, "points", 0, "number of chart points (default from config)")
	cmd.Flags().StringVar(&opts.window, "window", "", "change window named in the prompt (default from config)")
	cmd.Flags().StringVar(&opts.replyFile, "reply-file", "", "parse a saved model reply instead of calling the model")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, rawTicker string, opts analyzeOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.points > 0 {
		cfg.ChartPoints = opts.points
	}
	if opts.window != "" {
		cfg.ChangeWindow = opts.window
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logging.New(level, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	builder := insight.NewRequestBuilder(cfg.ChangeWindow)
	chart := insight.NewChartSynthesizer(cfg.ChartPoints)

	var report *models.StockReport
	if opts.replyFile != "" {
		report, err = analyzeSaved(rawTicker, opts.replyFile, builder, chart, log)
	} else {
		report, err = analyzeLive(ctx, rawTicker, cfg, builder, chart, log)
	}
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(out, report)
	return nil
}

func analyzeLive(ctx context.Context, rawTicker string, cfg config.Config, builder *insight.RequestBuilder, chart *insight.ChartSynthesizer, log *zap.Logger) (*models.StockReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := services.NewGeminiClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	return insight.NewPipeline(client, builder, chart, log).Run(ctx, rawTicker)
}

func analyzeSaved(rawTicker, path string, builder *insight.RequestBuilder, chart *insight.ChartSynthesizer, log *zap.Logger) (*models.StockReport, error) {
	ticker, err := insight.ParseTicker(rawTicker)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return insight.NewPipeline(services.UnconfiguredClient{}, builder, chart, log).
		Assemble(ticker, insight.RawResponse{Text: string(data)})
}

func printReport(out io.Writer, r *models.StockReport) {
	fmt.Fprintf(out, "%s  %s  (%s)\n\n", r.Ticker, r.Price, r.ChangeText)
	fmt.Fprintln(out, r.Analysis)
	if len(r.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for i, s := range r.Sources {
			fmt.Fprintf(out, "  [%d] %s\n      %s\n", i+1, s.Title, s.URL)
		}
	}
	if r.ChartDegenerate {
		fmt.Fprintln(out, "\nChart: flat (change implies a non-positive start price)")
	}
	vals := make([]string, 0, len(r.ChartSeries))
	for _, p := range r.ChartSeries {
		vals = append(vals, fmt.Sprintf("%s=%g", p.Time, p.Value))
	}
	fmt.Fprintf(out, "\nTrend (synthetic): %s\n", strings.Join(vals, " "))
	fmt.Fprintf(out, "Updated: %s\n", r.LastUpdated.Format("2006-01-02 15:04:05 MST"))
}
