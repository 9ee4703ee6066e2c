package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/faq-rag/services/evaluation"
	"github.com/upb/faq-rag/services/extraction"
)

var (
	evalCSV  string
	evalK    int
	evalJSON bool
)

var evalRetrievalCmd = &cobra.Command{
	Use:   "eval-retrieval",
	Short: "Measure retrieval quality on labeled questions",
	Long: `Runs every question of an FAQ export through retrieval and checks whether
the page the question came from is among the top k documents.
Reports context precision and recall averaged over all questions.`,
	Args: cobra.NoArgs,
	RunE: runEvalRetrieval,
}

func init() {
	evalRetrievalCmd.Flags().StringVar(&evalCSV, "csv", "", "FAQ export whose page_url is the expected source")
	evalRetrievalCmd.Flags().IntVarP(&evalK, "k", "k", 5, "number of documents to retrieve")
	evalRetrievalCmd.Flags().BoolVar(&evalJSON, "json", false, "output the report as JSON")
	_ = evalRetrievalCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(evalRetrievalCmd)
}

func runEvalRetrieval(cmd *cobra.Command, _ []string) error {
	if evalK <= 0 {
		return fmt.Errorf("--k must be positive, got %d", evalK)
	}

	cases, err := loadRetrievalCases(evalCSV)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	deps, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	report, err := evaluation.EvaluateRetrieval(ctx, deps.Retrieval, cases, evalK, deps.Logger)
	if err != nil {
		return err
	}

	if evalJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for _, r := range report.Results {
		mark := "miss"
		if r.Hit {
			mark = "hit "
		}
		cmd.Printf("  %s %.2f  %s\n", mark, r.Precision, r.Question)
	}
	cmd.Println()
	cmd.Printf("Cases: %d (failed %d), k=%d\n", report.Cases, report.Failed, report.K)
	cmd.Printf("Context precision: %.2f\n", report.Precision)
	cmd.Printf("Context recall:    %.2f\n", report.Recall)
	return nil
}

// loadRetrievalCases turns FAQ rows into cases expecting their own page
func loadRetrievalCases(path string) ([]evaluation.RetrievalCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := extraction.LoadFAQCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cases := make([]evaluation.RetrievalCase, 0, len(entries))
	for _, e := range entries {
		if e.Question == "" || e.PageURL == "" {
			continue
		}
		cases = append(cases, evaluation.RetrievalCase{Question: e.Question, ExpectedURL: e.PageURL})
	}
	return cases, nil
}
