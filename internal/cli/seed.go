package cli

import (
	"fmt"

	"github.com/Pratik1445/skillfolio/internal/config"
	"github.com/spf13/cobra"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample communities and challenges when none exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			sugar, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer sugar.Sync()

			b, err := open(cfg, sugar, dryRun)
			if err != nil {
				return err
			}
			defer b.close()

			communities, challenges, err := b.seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d communities and %d challenges\n", communities, challenges)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "seed a throwaway in-memory database instead")
	return cmd
}
