package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"askrag/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /ask over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntP("port", "p", 3000, "port to listen on (overrides server.port)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	p, err := WirePipeline(a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	if !a.cfg.Server.LazyIndex {
		if _, err := p.Manager.Ensure(ctx); err != nil {
			return err
		}
	}

	srv, err := server.New(server.Config{
		ListenAddr:   net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port)),
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSecs) * time.Second,
	}, p.Service, a.logger)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
