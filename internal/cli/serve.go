package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pratik1445/skillfolio/internal/config"
	"github.com/Pratik1445/skillfolio/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the http and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("Reading config file...")
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			fmt.Println("Setting up logger...")
			sugar, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer sugar.Sync()

			b, err := open(cfg, sugar, false)
			if err != nil {
				return err
			}
			defer b.close()

			if cfg.SeedSampleData {
				communities, challenges, err := b.seed(cmd.Context())
				if err != nil {
					return err
				}
				sugar.Infof("Seeded %d communities and %d challenges", communities, challenges)
			}

			b.handlers.StaticDir = staticDir

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return handlers.Serve(ctx, cfg, b.handlers.Router(), b.hub, sugar)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static", "./public/static", "directory of the built web app")
	return cmd
}
