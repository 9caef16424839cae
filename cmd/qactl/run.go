package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/realty-voice-platform/internal/scenario"
)

var errRunFailed = errors.New("one or more scenarios did not pass")

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		all     bool
		verbose bool
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "run [name] | run --all",
		Short: "Run one scenario or every scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give a scenario name or --all")
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all {
				res, err := client.RunAllScenarios(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json() {
					if err := writeJSON(out, res); err != nil {
						return err
					}
				} else {
					renderRunAll(out, res, verbose)
				}
				if strict && res.Passed != res.Total {
					return errRunFailed
				}
				return nil
			}

			res, err := client.RunScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json() {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				renderRun(out, res, true)
			}
			if strict && res.Status != scenario.StatusPassed {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every persisted scenario")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show turn detail for every scenario")
	cmd.Flags().BoolVar(&strict, "strict", true, "exit non-zero unless every scenario passed")
	return cmd
}

func renderRunAll(w io.Writer, res *scenario.RunAllResult, verbose bool) {
	for i := range res.Results {
		r := &res.Results[i]
		renderRun(w, r, verbose || r.Status != scenario.StatusPassed)
	}
	fmt.Fprintf(w, "\n%d total, %d passed, %d failed, %d errors in %dms\n",
		res.Total, res.Passed, res.Failed, res.Errors, res.DurationMS)
}

func renderRun(w io.Writer, r *scenario.ScenarioRunResult, detail bool) {
	fmt.Fprintf(w, "%-7s %s (%dms)\n", strings.ToUpper(r.Status), r.Name, r.DurationMS)
	if r.Error != "" {
		fmt.Fprintf(w, "        error: %s\n", r.Error)
	}
	if !detail {
		return
	}
	for _, turn := range r.Turns {
		fmt.Fprintf(w, "  turn %d: %q\n", turn.Turn, turn.UserInput)
		fmt.Fprintf(w, "    agent: %s\n", turn.AgentResponse)
		if len(turn.ToolCalls) > 0 {
			names := make([]string, len(turn.ToolCalls))
			for i, tc := range turn.ToolCalls {
				names[i] = tc.Name
			}
			fmt.Fprintf(w, "    tools: %s\n", strings.Join(names, ", "))
		}
		for _, c := range turn.Checks {
			mark := "ok  "
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(w, "    [%s] %s", mark, c.Type)
			if c.Expected != "" {
				fmt.Fprintf(w, " expected=%q", c.Expected)
			}
			if !c.Passed && c.Actual != "" {
				fmt.Fprintf(w, " actual=%q", c.Actual)
			}
			if c.Reason != "" {
				fmt.Fprintf(w, " (%s)", c.Reason)
			}
			fmt.Fprintln(w)
		}
	}
}
