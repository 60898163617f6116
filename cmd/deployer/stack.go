package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"
)

var errDestroyNotConfirmed = errors.New("destroy needs --yes; retained tables, buckets, secrets and the repository are kept")

// newPreviewCmd creates the "preview" subcommand.
func newPreviewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the changes an update would make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stack, err := a.stack(ctx)
			if err != nil {
				return err
			}

			result, err := stack.Preview(ctx, optpreview.ProgressStreams(a.out))
			if err != nil {
				return fmt.Errorf("preview failed: %w", err)
			}
			writeChangeSummary(a.out, result.ChangeSummary)
			return nil
		},
	}
}

// newUpCmd creates the "up" subcommand.
func newUpCmd(a *app) *cobra.Command {
	var skipSchemaCheck bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Deploy the stack",
		Long: `Up checks that the deployed tables still have the key schemas the catalog
declares, then updates the stack. A key schema cannot change in place, so a
difference stops the update.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := a.resolve()
			if err != nil {
				return err
			}

			if !skipSchemaCheck {
				if err := a.checkSchema(ctx, resolved.target); err != nil {
					return err
				}
			}

			stack, err := a.open(ctx, resolved)
			if err != nil {
				return err
			}

			result, err := stack.Up(ctx, optup.ProgressStreams(a.out))
			if err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			fmt.Fprintf(a.out, "Update %s\n", result.Summary.Result)
			return writeOutputs(a.out, result.Outputs, "text")
		},
	}

	cmd.Flags().BoolVar(&skipSchemaCheck, "skip-schema-check", false, "Skip the table key schema check")
	return cmd
}

// newDestroyCmd creates the "destroy" subcommand.
func newDestroyCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Remove the stack's resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errDestroyNotConfirmed
			}

			ctx := cmd.Context()
			stack, err := a.existingStack(ctx)
			if err != nil {
				return err
			}

			result, err := stack.Destroy(ctx, optdestroy.ProgressStreams(a.out))
			if err != nil {
				return fmt.Errorf("destroy failed: %w", err)
			}
			fmt.Fprintf(a.out, "Destroy %s\n", result.Summary.Result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destroy")
	return cmd
}

// newOutputsCmd creates the "outputs" subcommand.
func newOutputsCmd(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stack, err := a.existingStack(ctx)
			if err != nil {
				return err
			}

			outputs, err := stack.Outputs(ctx)
			if err != nil {
				return fmt.Errorf("failed to read outputs: %w", err)
			}
			return writeOutputs(a.out, outputs, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	return cmd
}

const secretPlaceholder = "[secret]"

// writeOutputs prints outputs sorted by name. Secret outputs are masked.
func writeOutputs(w io.Writer, outputs auto.OutputMap, format string) error {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	switch format {
	case "json":
		values := make(map[string]any, len(outputs))
		for _, name := range names {
			values[name] = outputs[name].Value
			if outputs[name].Secret {
				values[name] = secretPlaceholder
			}
		}
		data, err := json.MarshalIndent(values, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))

	case "text":
		for _, name := range names {
			value := fmt.Sprintf("%v", outputs[name].Value)
			if outputs[name].Secret {
				value = secretPlaceholder
			}
			fmt.Fprintf(w, "%s: %s\n", name, value)
		}

	default:
		return fmt.Errorf("unknown format %q: want text or json", format)
	}
	return nil
}

func writeChangeSummary[K ~string](w io.Writer, summary map[K]int) {
	ops := make([]string, 0, len(summary))
	for op := range summary {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)

	fmt.Fprintln(w, "Changes:")
	for _, op := range ops {
		fmt.Fprintf(w, "  %s: %d\n", op, summary[K(op)])
	}
}
