package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inverno-bio/inverno/core/batch"
	"github.com/inverno-bio/inverno/core/config"
	"github.com/inverno-bio/inverno/core/fusion"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/metrics"
	"github.com/inverno-bio/inverno/core/propagate"
	"github.com/inverno-bio/inverno/core/reversal"
	"github.com/inverno-bio/inverno/core/store"
)

var (
	scoreDiseases string
	scoreDrugs    string
	scoreTop      int
	scoreJSON     bool
	scoreDryRun   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every drug-disease pair and materialize the ranking",
	Long: `Score runs the full pipeline: propagation per disease, the three
component scores per pair, calibration over the batch population, fusion
with bootstrap intervals, and a ranked, provenance-complete result set
materialized under a fresh run ID.

Examples:
  inverno score
  inverno score --diseases 'MONDO:*' --drugs 'CHEMBL1*' --top 20
  inverno score --json > ranking.json`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreDiseases, "diseases", "", "glob filter on disease IDs")
	scoreCmd.Flags().StringVar(&scoreDrugs, "drugs", "", "glob filter on drug IDs")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 25, "rows to print (0 = all)")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "emit the full result set as JSON")
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "score without materializing")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	diseases, drugs, err := loadCohort(ctx, st, cfg)
	if err != nil {
		return err
	}
	if len(diseases) == 0 || len(drugs) == 0 {
		return fmt.Errorf("nothing to score: %d diseases, %d drugs after filtering",
			len(diseases), len(drugs))
	}

	runner, scorer, err := buildRunner(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	defer scorer.Close()

	res, err := runner.Run(ctx, diseases, drugs)
	if err != nil {
		return err
	}
	if !scoreDryRun {
		if err := st.MaterializeRun(ctx, res, cfg); err != nil {
			return err
		}
	}

	if scoreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printRanking(res, scoreTop)
	return nil
}

// loadCohort reads and filters the run's diseases and drugs.
func loadCohort(ctx context.Context, st *store.Store, cfg *config.Config) ([]batch.DiseaseInput, []batch.DrugInput, error) {
	matchDisease, err := compileFilter(scoreDiseases)
	if err != nil {
		return nil, nil, err
	}
	matchDrug, err := compileFilter(scoreDrugs)
	if err != nil {
		return nil, nil, err
	}

	allDiseases, err := st.LoadDiseases(ctx, cfg.Seeds.Options())
	if err != nil {
		return nil, nil, err
	}
	var diseases []batch.DiseaseInput
	for _, d := range allDiseases {
		if matchDisease(d.ID()) {
			diseases = append(diseases, d)
		}
	}

	allDrugs, err := st.LoadDrugs(ctx)
	if err != nil {
		return nil, nil, err
	}
	var drugs []batch.DrugInput
	for _, d := range allDrugs {
		if matchDrug(d.DrugID) {
			drugs = append(drugs, d)
		}
	}
	return diseases, drugs, nil
}

// buildRunner assembles the scoring pipeline from the configuration. The
// caller owns the returned scorer's cache and must Close it.
func buildRunner(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*batch.Runner, *reversal.Scorer, error) {
	g, err := st.LoadGraph(ctx, cfg.Graph.Builder())
	if err != nil {
		return nil, nil, err
	}
	alg, err := propagate.ForName(cfg.Propagation.Algorithm)
	if err != nil {
		return nil, nil, err
	}
	scorer, err := reversal.NewScorer(cfg.Reversal.ScorerConfig(), logger)
	if err != nil {
		return nil, nil, err
	}

	var model *fusion.LogisticModel
	if cfg.Fusion.WeightMode == string(fusion.WeightModeLearned) {
		model, err = loadModel(cfg.Fusion.ModelPath)
		if err != nil {
			scorer.Close()
			return nil, nil, err
		}
	}
	fuser, err := fusion.NewFuser(cfg.Fusion.FuserConfig(model), logger)
	if err != nil {
		scorer.Close()
		return nil, nil, err
	}

	runner, err := batch.NewRunner(
		graph.NewSnapshot(g),
		propagate.NewEngine(alg, logger),
		scorer,
		fuser,
		cfg.RunnerConfig(),
		logger,
		metrics.NewRegistry(),
	)
	if err != nil {
		scorer.Close()
		return nil, nil, err
	}
	return runner, scorer, nil
}

// loadModel reads a trained logistic model written by "inverno fuse train".
func loadModel(path string) (*fusion.LogisticModel, error) {
	if path == "" {
		return nil, fmt.Errorf("learned weight mode needs fusion.model_path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var model fusion.LogisticModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	return &model, nil
}

func printRanking(res *batch.Result, top int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tDRUG\tDISEASE\tFUSED\t95%% CI\tPARTIAL\n")
	for i, r := range res.Results {
		if top > 0 && i >= top {
			break
		}
		partial := ""
		if r.PartialEvidence {
			partial = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t[%.3f, %.3f]\t%s\n",
			i+1, r.DrugID, r.DiseaseID, r.Fused, r.Interval.Low, r.Interval.High, partial)
	}
	w.Flush()
	fmt.Printf("\nrun %s: %d results, %d failures\n",
		res.Run.RunID, len(res.Results), len(res.Failures))
	for _, f := range res.Failures {
		fmt.Printf("  failure: %s\n", f)
	}
}
