package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/server"
)

func newServeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local bridge for the companion UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, logger, err := e.newCompanion(false)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(server.Config{
				ListenAddr: cfg.ServerAddr,
				Logger:     logger.With(logging.Field{Key: "component", Value: "server"}),
			}, c)
			if err != nil {
				_ = c.Close()
				return err
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpSrv := srv.HTTPServer()
			errCh := make(chan error, 1)
			go func() {
				logger.Info("bridge listening", logging.Field{Key: "addr", Value: cfg.ServerAddr})
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:8787)")
	_ = e.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
