package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

// playTimeout bounds one playback, well past any notification-length WAV.
const playTimeout = 60 * time.Second

type playbackResult struct {
	id     string
	reason string // empty on success
}

func newPlayCommand(c *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "play <file>",
		Short: "Play a WAV file through the audio output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path %q: %w", args[0], err)
			}

			sess, err := c.openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			results := make(chan playbackResult, 1)
			sess.mgr.SetOnPlaybackFinished(func(id string) {
				results <- playbackResult{id: id}
			})
			sess.mgr.SetOnPlaybackError(func(id, reason string) {
				results <- playbackResult{id: id, reason: reason}
			})

			slog.Info("playing file", "path", path)
			sess.mgr.PlayFile(path, true)

			res, err := awaitResult(results, playTimeout)
			if err != nil {
				return err
			}
			if res.reason != "" {
				return fmt.Errorf("playback of %s failed: %s", res.id, res.reason)
			}
			cmd.Printf("played %s\n", path)
			return nil
		},
	}
}

func awaitResult(results <-chan playbackResult, timeout time.Duration) (playbackResult, error) {
	select {
	case res := <-results:
		return res, nil
	case <-time.After(timeout):
		return playbackResult{}, fmt.Errorf("timed out waiting for playback to finish")
	}
}
