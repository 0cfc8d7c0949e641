package cli

import (
	"github.com/spf13/cobra"

	"chime.click/internal/logging"
	"chime.click/internal/settings"
)

const historyListLimit = 10

func newStatusCommand(c *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, settings and recent playback history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.FileLogging)

			dev := cfg.Device()
			cmd.Printf("format:      %d Hz, %d channel(s), 16-bit PCM\n",
				dev.SampleRate, dev.Channels)
			cmd.Printf("pins:        bclk=%d lrck=%d dout=%d\n",
				dev.BCLKPin, dev.LRCKPin, dev.DOUTPin)

			store := c.openSettings()
			cmd.Printf("volume:      %d\n", store.Int(settings.KeyVolume, 50))
			cmd.Printf("sound:       %s\n", onOff(store.Bool(settings.KeyEnabled, true)))
			cmd.Printf("click sound: %s\n", onOff(store.Bool(settings.KeyClickEnabled, true)))

			journal := c.openJournal()
			if journal == nil {
				cmd.Println("history:     unavailable")
				return nil
			}
			defer journal.Close()

			events, err := journal.Recent(historyListLimit)
			if err != nil {
				cmd.Printf("history:     query failed: %v\n", err)
				return nil
			}
			if len(events) == 0 {
				cmd.Println("history:     empty")
				return nil
			}
			cmd.Println("history:")
			for _, ev := range events {
				line := ev.Outcome
				if ev.Detail != "" {
					line += " (" + ev.Detail + ")"
				}
				cmd.Printf("  %s  %-40s %s\n",
					ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Identifier, line)
			}
			return nil
		},
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
