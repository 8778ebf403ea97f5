package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inverno-bio/inverno/core/batch"
	"github.com/inverno-bio/inverno/core/reversal"
	"github.com/inverno-bio/inverno/core/signature"
	"github.com/inverno-bio/inverno/core/store"
)

var (
	reversalDisease string
	reversalDrug    string
)

var reversalCmd = &cobra.Command{
	Use:   "reversal",
	Short: "Score signature reversal for one drug-disease pair",
	Long: `Reversal computes the connectivity tau between one disease's
expression signature and one drug's perturbational profiles, printing the
per-context statistics behind the aggregate.

Examples:
  inverno reversal --disease MONDO:0005148 --drug CHEMBL1431`,
	RunE: runReversal,
}

func init() {
	reversalCmd.Flags().StringVar(&reversalDisease, "disease", "", "disease ID")
	reversalCmd.Flags().StringVar(&reversalDrug, "drug", "", "drug ID")
	reversalCmd.MarkFlagRequired("disease")
	reversalCmd.MarkFlagRequired("drug")
	rootCmd.AddCommand(reversalCmd)
}

func runReversal(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	diseases, err := st.LoadDiseases(ctx, cfg.Seeds.Options())
	if err != nil {
		return err
	}
	var diseaseSig = findDiseaseSignature(diseases, reversalDisease)
	if diseaseSig == nil {
		return fmt.Errorf("no expression signature for disease %s", reversalDisease)
	}

	drugs, err := st.LoadDrugs(ctx)
	if err != nil {
		return err
	}
	var drugIdx = -1
	for i, d := range drugs {
		if d.DrugID == reversalDrug {
			drugIdx = i
			break
		}
	}
	if drugIdx < 0 || len(drugs[drugIdx].Signatures) == 0 {
		return fmt.Errorf("no perturbational signatures for drug %s", reversalDrug)
	}

	scorer, err := reversal.NewScorer(cfg.Reversal.ScorerConfig(), logger)
	if err != nil {
		return err
	}
	defer scorer.Close()

	tau, detail, err := scorer.Score(diseaseSig, drugs[drugIdx].Signatures)
	if err != nil {
		return err
	}

	fmt.Printf("pair %s / %s: tau = %s (%s over %d contexts, %d skipped)\n\n",
		reversalDrug, reversalDisease, tau, detail.Aggregation,
		len(detail.Contexts), detail.Skipped)
	if detail.LowCoverage {
		fmt.Println("low coverage: no context met the overlap threshold")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "CONTEXT\tTAU\tOVERLAP\tUP\tDOWN\n")
	for _, c := range detail.Contexts {
		fmt.Fprintf(w, "%s\t%.4f\t%d\t%d\t%d\n",
			c.Context, c.Tau, c.Overlap, c.UpSize, c.DownSize)
	}
	return w.Flush()
}

func findDiseaseSignature(diseases []batch.DiseaseInput, id string) *signature.DiseaseSignature {
	for _, d := range diseases {
		if d.ID() == id {
			return d.Signature
		}
	}
	return nil
}
