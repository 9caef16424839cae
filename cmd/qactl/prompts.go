package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPromptsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect the prompt templates scenarios run against",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List prompt files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := opts.client(cmd)
				if err != nil {
					return err
				}
				list, err := client.ListPrompts(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				for _, p := range list.Prompts {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print a prompt template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client(cmd)
				if err != nil {
					return err
				}
				p, err := client.GetPromptContent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), p)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(p.Content, "\n"))
				return err
			},
		},
		&cobra.Command{
			Use:   "fields <name>",
			Short: "List the field identifiers a prompt collects",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client(cmd)
				if err != nil {
					return err
				}
				f, err := client.GetPromptFields(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.json() {
					return writeJSON(cmd.OutOrStdout(), f)
				}
				for _, field := range f.Fields {
					fmt.Fprintln(cmd.OutOrStdout(), field)
				}
				return nil
			},
		},
	)
	return cmd
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var promptFile string
	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Draft a scenario from a description (not saved)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			draft, err := client.GenerateScenario(cmd.Context(), strings.Join(args, " "), promptFile)
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), draft)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(draft)
		},
	}
	cmd.Flags().StringVar(&promptFile, "prompt", "", "mock prompt file the draft targets")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the runner service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			h, err := client.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json() {
				return writeJSON(cmd.OutOrStdout(), h)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d scenarios, %d prompts\n", h.Status, h.ScenariosCount, h.PromptsCount)
			return err
		},
	}
}
