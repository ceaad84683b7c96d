package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/talentbridge/livesession/internal/relay"
)

func NewRelayCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Run the reference signaling relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", deps.Config.Port),
				Handler: relay.New(deps.Config).Router(),
			}

			go func() {
				log.Info().Str("addr", srv.Addr).Msg("relay started")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("relay error")
				}
			}()

			<-ctx.Done()
			log.Info().Msg("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("relay forced to shutdown")
			}
			return nil
		},
	}
}
