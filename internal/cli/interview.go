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
	"github.com/talentbridge/livesession/internal/rtc"
	"github.com/talentbridge/livesession/internal/session"
	sig "github.com/talentbridge/livesession/internal/signal"
)

func NewInterviewCmd(deps *Dependencies) *cobra.Command {
	var (
		roomID   string
		username string
		asHost   bool
	)
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Host or join a direct interview room",
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

			role := session.RoleGuest
			if asHost {
				role = session.RoleHost
			}
			room := session.NewInterviewRoom(session.InterviewConfig{
				RoomID:    roomID,
				Username:  username,
				Role:      role,
				Media:     media.NewController(media.NewSynthProvider(), consoleStage{}),
				Bus:       bus,
				RTCConfig: rtc.DefaultConfiguration(deps.Config.STUNServers),
			})
			if err := room.Join(ctx); err != nil {
				return err
			}
			defer room.Leave()

			fmt.Println("commands: m/v/p/c/i/g shortcuts, say <msg>, who, admit <id>, deny <id>, quit")
			readLines(ctx, func(line string) bool {
				switch {
				case line == "quit":
					return false
				case strings.HasPrefix(line, "say "):
					if err := room.SendChat(strings.TrimPrefix(line, "say ")); err != nil {
						log.Warn().Err(err).Msg("send chat")
					}
				case line == "who":
					if room.Waiting != nil {
						for _, e := range room.Waiting.Waiting() {
							fmt.Printf("waiting  %s  %s\n", e.ID, e.DisplayName)
						}
					}
					for _, e := range room.Roster.Snapshot() {
						fmt.Printf("in-room  %s  %s\n", e.ID, e.DisplayName)
					}
				case strings.HasPrefix(line, "admit "):
					id := domain.ParticipantID(strings.TrimPrefix(line, "admit "))
					if err := room.Admit(id); err != nil {
						log.Warn().Err(err).Msg("admit")
					}
				case strings.HasPrefix(line, "deny "):
					id := domain.ParticipantID(strings.TrimPrefix(line, "deny "))
					if err := room.Deny(id); err != nil {
						log.Warn().Err(err).Msg("deny")
					}
				case len([]rune(line)) == 1:
					room.Shortcuts.HandleKey([]rune(line)[0], false)
				default:
					fmt.Println("unrecognized command")
				}
				fmt.Printf("[negotiation: %s | connected: %v]\n", room.NegotiationState(), bus.Connected())
				return true
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room identifier")
	cmd.Flags().StringVar(&username, "name", "guest", "display name")
	cmd.Flags().BoolVar(&asHost, "host", false, "act as the interviewing host")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}
