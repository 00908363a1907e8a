package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
)

var runFlags struct {
	file string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the documents listed in a JSON file",
	Long: "run reads {\"documents\": [...]} from --file, processes every document\n" +
		"once and prints the per-type results as JSON.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.file, "file", "f", "", "JSON file with the documents to process (required)")
	_ = runCmd.MarkFlagRequired("file")
}

type runInput struct {
	Documents []model.DocumentContract `json:"documents"`
}

func readDocuments(path string) ([]model.DocumentContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in runInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(in.Documents) == 0 {
		return nil, fmt.Errorf("%s: no documents", path)
	}
	for i := range in.Documents {
		if err := in.Documents[i].Validate(); err != nil {
			return nil, err
		}
	}
	return in.Documents, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	docs, err := readDocuments(runFlags.file)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), loaded())
	if err != nil {
		return err
	}
	defer a.Close()

	results := a.orchestrator.RunBatches(cmd.Context(), model.GroupByType(docs))
	if err := printJSON(cmd, results); err != nil {
		return err
	}
	return batchErrors(results)
}

// batchErrors joins the errors reported by every failed batch.
func batchErrors(results []model.RunBatch) error {
	var errs []error
	for _, r := range results {
		if r.Error != "" {
			errs = append(errs, fmt.Errorf("%s: %s", r.DocumentType, r.Error))
		}
	}
	return errors.Join(errs...)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
