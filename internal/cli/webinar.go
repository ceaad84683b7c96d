package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/talentbridge/livesession/internal/domain"
	"github.com/talentbridge/livesession/internal/media"
	"github.com/talentbridge/livesession/internal/session"
	sig "github.com/talentbridge/livesession/internal/signal"
)

func NewWebinarCmd(deps *Dependencies) *cobra.Command {
	var (
		roomID   string
		username string
		asHost   bool
	)
	cmd := &cobra.Command{
		Use:   "webinar",
		Short: "Host or attend a broadcast webinar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			bus, err := sig.Dial(ctx, deps.Config.RelayURL,
				sig.WithPingPeriod(deps.Config.PingPeriod),
				sig.WithWriteTimeout(deps.Config.WriteTimeout),
			)
			if err != nil {
				return err
			}
			defer bus.Release()

			cfg := session.WebinarConfig{
				RoomID:      roomID,
				Username:    username,
				Role:        session.RoleViewer,
				Bus:         bus,
				ReactionTTL: deps.Config.ReactionTTL,
			}
			if asHost {
				cfg.Role = session.RoleHost
				cfg.Media = media.NewController(media.NewSynthProvider(), consoleStage{})
			}
			web := session.NewWebinar(cfg)
			if err := web.Join(ctx); err != nil {
				return err
			}
			defer web.Leave()
			web.Shortcuts.Bind(session.ActionReact, func() {
				if err := web.React("👏"); err != nil {
					log.Warn().Err(err).Msg("react")
				}
			})

			fmt.Println("commands: f/c/i/r shortcuts, say <msg>, log, end (host), quit")
			readLines(ctx, func(line string) bool {
				switch {
				case line == "quit":
					return false
				case strings.HasPrefix(line, "say "):
					if err := web.SendChat(strings.TrimPrefix(line, "say ")); err != nil {
						log.Warn().Err(err).Msg("send chat")
					}
				case line == "log":
					for _, m := range web.Chat.Messages() {
						prefix := m.SenderName
						if m.IsSystemNotice {
							prefix = "*"
						}
						fmt.Printf("%s: %s\n", prefix, m.Body)
					}
				case line == "end" && asHost:
					if err := web.End(); err != nil {
						log.Warn().Err(err).Msg("end webinar")
					}
				case strings.HasPrefix(line, "admit ") && asHost:
					id := domain.ParticipantID(strings.TrimPrefix(line, "admit "))
					if err := web.Admit(id); err != nil {
						log.Warn().Err(err).Msg("admit")
					}
				case len([]rune(line)) == 1:
					web.Shortcuts.HandleKey([]rune(line)[0], false)
				default:
					fmt.Println("unrecognized command")
				}
				return true
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room identifier")
	cmd.Flags().StringVar(&username, "name", "viewer", "display name")
	cmd.Flags().BoolVar(&asHost, "host", false, "act as the broadcasting host")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}
