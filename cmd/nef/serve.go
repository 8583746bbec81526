package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielpatrickdp/nef-optimizer/internal/codec"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built-in objectives over gRPC",
	Long: `Expose every registered objective (rosenbrock, sphere, tradeoff) through the
ObjectiveService gRPC API, with the standard gRPC health service alongside.

Examples:
  nef serve --addr :7070
  nef run --objective-addr localhost:7070 --objective sphere`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf("serving objectives on %s", addr)
		return codec.NewRegistryServer().Serve(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", envOr("NEF_SERVE_ADDR", ":7070"), "listen address")
	rootCmd.AddCommand(serveCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
