package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crisisbench/internal/catalog"
	"crisisbench/internal/lifecycle"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List downloaded models via the loader CLI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl := lifecycle.NewController(
				lifecycle.NewCommander(a.cfg.LMSPath), nil,
				a.cfg.LoadTimeout(), a.cfg.VerifyBackoff(), a.log)
			out, err := ctrl.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			models := catalog.ParseList(out)
			if len(models) == 0 {
				return fmt.Errorf("no models reported by %s", a.cfg.LMSPath)
			}
			for _, m := range models {
				fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			}
			if save {
				if err := catalog.SaveModels(a.cfg.ModelsFile, models); err != nil {
					return err
				}
				a.log.Info().Str("file", a.cfg.ModelsFile).Int("models", len(models)).
					Msg("model catalog written")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Write the discovered models to the models file")
	return cmd
}
