package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inverno-bio/inverno/core/store"
)

var seedsDisease string

var seedsCmd = &cobra.Command{
	Use:   "seeds",
	Short: "Build and print one disease's seed set",
	Long: `Seeds aggregates the stored disease-gene evidence into the
normalized seed vector propagation would start from, listing each gene's
weight and the evidence sources behind it.

Examples:
  inverno seeds --disease MONDO:0005148`,
	RunE: runSeeds,
}

func init() {
	seedsCmd.Flags().StringVar(&seedsDisease, "disease", "", "disease ID")
	seedsCmd.MarkFlagRequired("disease")
	rootCmd.AddCommand(seedsCmd)
}

func runSeeds(cmd *cobra.Command, args []string) error {
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
	for _, d := range diseases {
		if d.ID() != seedsDisease {
			continue
		}
		seeds := d.Seeds
		genes := seeds.Genes()
		sort.Slice(genes, func(i, j int) bool {
			if seeds.Weights[genes[i]] != seeds.Weights[genes[j]] {
				return seeds.Weights[genes[i]] > seeds.Weights[genes[j]]
			}
			return genes[i] < genes[j]
		})

		fmt.Printf("disease %s: %d seed genes, %s normalization\n\n",
			seeds.DiseaseID, len(genes), seeds.Normalization)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "GENE\tWEIGHT\tSOURCES\n")
		for _, gene := range genes {
			fmt.Fprintf(w, "%s\t%.6g\t%s\n",
				gene, seeds.Weights[gene], strings.Join(seeds.Sources[gene], ","))
		}
		return w.Flush()
	}
	return fmt.Errorf("no seed evidence for disease %s", seedsDisease)
}
