package cli

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/talentbridge/livesession/internal/core"
)

// consoleStage is the terminal's stand-in for the stage video surface.
type consoleStage struct{}

func (consoleStage) Attach(s core.Stream) {
	log.Info().Str("module", "cli").Str("stream", s.ID()).Msg("stage attached")
}

func (consoleStage) Detach() {
	log.Info().Str("module", "cli").Msg("stage detached")
}

// readLines feeds stdin lines to handle until EOF, a "quit" command or
// context cancellation. handle returns false to stop.
func readLines(ctx context.Context, handle func(line string) bool) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if !handle(line) {
				return
			}
		}
	}
}
