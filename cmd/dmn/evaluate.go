package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/quantumdmn/dmn-go/pkg/client"
	"github.com/quantumdmn/dmn-go/pkg/feel"
	"github.com/spf13/cobra"
)

var (
	evalProject string
	evalVersion int
	evalInput   string
	evalFormat  string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <xml-id>",
	Short: "Evaluate a stored decision model",
	Long: `evaluate runs a stored definition against a JSON input context and prints
one row per decision. Numbers are sent and printed with their exact digits.

  dmn evaluate loan-approval --project 0b7c1c5e-... --input applicant.json
  echo '{"age": 25}' | dmn evaluate loan-approval --input - --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalProject, "project", "", "project id (UUID); defaults to project_id from config")
	evaluateCmd.Flags().IntVar(&evalVersion, "version", 0, "definition version; 0 selects the latest")
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "", "JSON file holding the input context, or - for stdin")
	evaluateCmd.Flags().StringVar(&evalFormat, "format", "text", "output format: text or json")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if evalFormat != "text" && evalFormat != "json" {
		return fmt.Errorf("unknown format %q: want text or json", evalFormat)
	}
	project := evalProject
	if project == "" {
		project = cfg.ProjectID
	}
	if project == "" {
		return fmt.Errorf("no project: pass --project or set project_id")
	}

	input, err := readInput(cmd.InOrStdin(), evalInput)
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	engine, err := client.NewEngine(c, project)
	if err != nil {
		return err
	}

	results, err := engine.EvaluateContext(cmd.Context(), args[0], evalVersion, input)
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), evalFormat, results)
}

// readInput loads the input context from path. An empty path yields an
// empty context.
func readInput(stdin io.Reader, path string) (feel.Value, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return feel.Context(nil), nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return feel.Value{}, fmt.Errorf("read input: %w", err)
	}
	v, err := feel.Unmarshal(data)
	if err != nil {
		return feel.Value{}, fmt.Errorf("parse input: %w", err)
	}
	if v.Kind() != feel.KindContext {
		return feel.Value{}, fmt.Errorf("input must be a JSON object, got %s", v.Kind())
	}
	return v, nil
}

func printResults(w io.Writer, format string, results map[string]client.EvaluationResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DECISION\tVALUE\tERROR")
	for _, id := range ids {
		r := results[id]
		errText := "-"
		if r.Failed() {
			errText = r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, r.Value, errText)
	}
	return tw.Flush()
}
