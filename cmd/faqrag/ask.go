package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services/pipeline"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question",
	Long: `Runs a question through retrieval, generation and evaluation and prints
the answer with its references and scores.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full response as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	deps, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(ctx) }()

	resp, err := deps.Pipeline.AnswerQuestion(ctx, strings.Join(args, " "))

	if askJSON {
		data, merr := json.MarshalIndent(resp, "", "  ")
		if merr != nil {
			return fmt.Errorf("failed to marshal response: %w", merr)
		}
		cmd.Println(string(data))
	} else {
		printResponse(cmd, resp)
	}

	if err != nil {
		return fmt.Errorf("%s: %w", resp.ErrorCode, err)
	}
	return nil
}

func printResponse(cmd *cobra.Command, resp *pipeline.Response) {
	cmd.Println(resp.Answer)
	cmd.Println()

	if len(resp.References) > 0 {
		cmd.Println("References:")
		for i, ref := range resp.References {
			cmd.Printf("  [%d] %s\n", i+1, ref)
		}
		cmd.Println()
	}

	if ev := resp.Evaluation; ev != nil {
		cmd.Printf("Verdict: %s (confidence %.2f)\n", ev.Verdict, ev.OverallConfidence)
		for _, name := range models.ScoreNames {
			cmd.Printf("  %-20s %.2f\n", name, ev.Scores[name])
		}
	}
	if resp.Degraded {
		cmd.Println("Warning: the response is degraded")
	}
	cmd.Printf("Request %s finished in %d ms\n", resp.RequestID, resp.LatencyMs)
}
