package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanuki0/tanuki/internal/app"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index [name...]",
	Short: "Build knowledge bases from the configured data sources",
	Long: `Snapshot each data source's structure, embed it and store it in
the vector store. With no arguments every enabled data source is
indexed; otherwise only the named ones.

Sources that already have a persisted index are skipped unless
--force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild even when a persisted index exists")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, names []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	if len(names) == 0 {
		names = a.Knowledge.Names()
	}
	if len(names) == 0 {
		return fmt.Errorf("no enabled data sources in %s", cfg.DatasourcesFile)
	}

	var failed int
	for _, name := range names {
		base, err := a.Knowledge.Get(name)
		if err != nil {
			return err
		}

		if !indexForce {
			if loadErr := base.Load(ctx); loadErr == nil {
				info := base.Info()
				fmt.Printf("%-20s already indexed (%d documents), use --force to rebuild\n",
					name, info.Documents)
				continue
			}
		}

		if err := base.Initialize(ctx); err != nil {
			failed++
			fmt.Printf("%-20s FAILED: %v\n", name, err)
			continue
		}
		info := base.Info()
		fmt.Printf("%-20s indexed %d documents into %s\n", name, info.Documents, info.Collection)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d knowledge bases failed", failed, len(names))
	}
	return nil
}
