package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

func newScenariosCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scenarios",
		Aliases: []string{"sc"},
		Short:   "Manage persisted scenarios",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List scenarios with their last result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			summaries, err := client.ListScenarios(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			return renderSummaries(cmd.OutOrStdout(), summaries)
		},
	}

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a scenario as YAML (or JSON with -o json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			detail, err := client.GetScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), detail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# file_path: %s\n", detail.FilePath)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(detail.Scenario)
		},
	}

	var file string
	create := &cobra.Command{
		Use:   "create -f scenario.yaml",
		Short: "Create a scenario from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readScenarioFile(file)
			if err != nil {
				return err
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			summary, err := client.CreateScenario(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), opts, "created", summary)
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "scenario file (- for stdin)")
	_ = create.MarkFlagRequired("file")

	var updateFile string
	update := &cobra.Command{
		Use:   "update <name> -f scenario.yaml",
		Short: "Replace a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readScenarioFile(updateFile)
			if err != nil {
				return err
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			summary, err := client.UpdateScenario(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), opts, "updated", summary)
		},
	}
	update.Flags().StringVarP(&updateFile, "file", "f", "", "scenario file (- for stdin)")
	_ = update.MarkFlagRequired("file")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := client.DeleteScenario(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func readScenarioFile(path string) (scenario.ScenarioCreateRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return scenario.ScenarioCreateRequest{}, fmt.Errorf("read scenario file: %w", err)
	}
	var req scenario.ScenarioCreateRequest
	// JSON is valid YAML, so one decoder covers both formats
	if err := yaml.Unmarshal(data, &req); err != nil {
		return scenario.ScenarioCreateRequest{}, fmt.Errorf("parse scenario file: %w", err)
	}
	return req, nil
}

func printSummary(w io.Writer, opts *rootOptions, verb string, s *scenario.ScenarioSummary) error {
	if opts.json() {
		return writeJSON(w, s)
	}
	_, err := fmt.Fprintf(w, "%s %s (%s, %d turns)\n", verb, s.Name, s.FilePath, s.TurnCount)
	return err
}

func renderSummaries(w io.Writer, summaries []scenario.ScenarioSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFILE\tMODE\tTURNS\tTAGS\tLAST RESULT")
	for _, s := range summaries {
		last := "-"
		if s.LastResult != nil {
			last = fmt.Sprintf("%s (%dms, %s)", s.LastResult.Status, s.LastResult.DurationMS, s.LastResult.RanAt.Format("2006-01-02 15:04"))
		}
		mode := s.Mode
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", s.Name, s.FilePath, mode, s.TurnCount, strings.Join(s.Tags, ","), last)
	}
	return tw.Flush()
}
