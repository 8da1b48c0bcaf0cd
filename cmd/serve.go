package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/surveyloom-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline API for the wizard UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.ServerAddr
		}
		if addr == "" {
			addr = "127.0.0.1:8080"
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		fmt.Printf("✓ Serving on http://%s/api (Ctrl-C to stop)\n", addr)
		return server.New(cfg, logger).Serve(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}
