package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"crisisbench/internal/results"
	"crisisbench/internal/runner"
)

func newBatchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List batch directories under the results dir",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dirs, err := runner.ListBatchDirs(a.cfg.ResultsDir)
			if err != nil {
				return err
			}
			if len(dirs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no batches under %s\n", a.cfg.ResultsDir)
				return nil
			}
			for _, d := range dirs {
				models, records := countBatchFiles(filepath.Join(a.cfg.ResultsDir, d))
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d result files\t%d run records\n", d, models, records)
			}
			return nil
		},
	}
}

func countBatchFiles(dir string) (resultFiles, runRecords int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		if results.IsRunInfo(name) {
			runRecords++
		} else {
			resultFiles++
		}
	}
	return resultFiles, runRecords
}
