// Command hammerd runs the auction house daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/StabilityNexus/hammerhouse/config"
	"github.com/StabilityNexus/hammerhouse/house"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:     "hammerd",
	Short:   "hammerd - multi-protocol auction house daemon",
	Long:    `hammerd hosts concurrent auction sessions over escrowed assets under five protocols: English, all-pay, Vickrey, and linear and exponential reverse-Dutch.`,
	Version: "0.1.0-dev",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the auction house server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		// Standalone custody: in-memory gateway. Deployments with real
		// custody link their own main around house.New.
		h, err := house.New(cfg, house.NewDevGateway())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf("INFO: Starting hammerd (shards=%d, fee_bps=%d, digest=%s)", cfg.Shards, cfg.FeeBps, cfg.Digest)
		return h.Run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hammerd %s\n", rootCmd.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
