package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/schemacheck"
	"github.com/thoughtful-python/infra/pkg/config"
)

// newCheckSchemaCmd creates the "check-schema" subcommand.
func newCheckSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-schema",
		Short: "Compare deployed table key schemas with the catalog",
		Long: `Check-schema describes every catalog table. Tables that are not deployed
yet pass; a deployed table whose partition or sort key differs fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.target()
			if err != nil {
				return err
			}
			return a.checkSchema(cmd.Context(), target)
		},
	}
}

func (a *app) checkSchema(ctx context.Context, target config.Target) error {
	client, err := a.dynamoClient(ctx, target.Region)
	if err != nil {
		return err
	}

	results, err := schemacheck.New(client, a.logger).Check(ctx, catalog.Tables(catalogConfig(target)))
	for _, r := range results {
		line := fmt.Sprintf("%-28s %s", r.Table, r.Status)
		if len(r.Differences) > 0 {
			line += ": " + strings.Join(r.Differences, "; ")
		}
		fmt.Fprintln(a.out, line)
	}
	return err
}
