package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"chime.click/internal/settings"
)

func newClickCommand(c *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "click",
		Short: "Play the UI click sound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}

			sess, err := c.openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			if !sess.settings.Bool(settings.KeyClickEnabled, true) {
				cmd.Println("click sound is disabled in settings")
				return nil
			}

			results := make(chan playbackResult, count)
			sess.mgr.SetOnPlaybackFinished(func(id string) {
				results <- playbackResult{id: id}
			})
			sess.mgr.SetOnPlaybackError(func(id, reason string) {
				results <- playbackResult{id: id, reason: reason}
			})

			slog.Info("playing click sound", "count", count)
			for i := 0; i < count; i++ {
				sess.mgr.PlayClickSound()
			}

			for i := 0; i < count; i++ {
				res, err := awaitResult(results, 5*time.Second)
				if err != nil {
					return err
				}
				if res.reason != "" {
					return fmt.Errorf("click playback failed: %s", res.reason)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "Number of clicks to play")
	return cmd
}
