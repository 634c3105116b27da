package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCleanupCmd creates the 'cleanup' subcommand, which runs one retention
// pass over quota and analysis records and exits.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Deletes expired quota and analysis records",
		RunE:  runCleanupCommand,
	}
}

func runCleanupCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appInstance.Close(ctx)
	}()

	report := appInstance.Cleanup(cmd.Context())

	collections := make([]string, 0, len(report))
	for name := range report {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	var errs []error
	for _, name := range collections {
		res := report[name]
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
			continue
		}
		appInstance.Logger().Info("retention pass finished",
			zap.String("collection", name),
			zap.Int("deleted", res.Deleted),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: deleted %d\n", name, res.Deleted)
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
	}
	return nil
}
