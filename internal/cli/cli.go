// Package cli implements the chime command-line interface: a desktop harness
// around the audio engine for playing files, auditioning the click sound and
// inspecting playback history.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"chime.click/internal/config"
	"chime.click/internal/device"
	"chime.click/internal/engine"
	"chime.click/internal/history"
	"chime.click/internal/logging"
	"chime.click/internal/settings"
)

const Version = "1.2.0"

// CLI bundles the root command with the collaborators that tests swap out.
type CLI struct {
	rootCmd   *cobra.Command
	fs        afero.Fs
	newOutput device.Factory
}

// NewCLI creates a CLI wired to the real filesystem and audio backend.
func NewCLI() *CLI {
	return newCLI(afero.NewOsFs(), nil)
}

func newCLI(fs afero.Fs, newOutput device.Factory) *CLI {
	slog.Debug("creating new CLI instance")

	c := &CLI{fs: fs, newOutput: newOutput}

	rootCmd := &cobra.Command{
		Use:           "chime",
		Short:         "Audio feedback engine",
		Long:          "Chime plays short WAV notification sounds through the system audio device, with the same queueing and gain behavior the embedded firmware uses.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newPlayCommand(c))
	rootCmd.AddCommand(newClickCommand(c))
	rootCmd.AddCommand(newStatusCommand(c))

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().Int("volume", -1, "Volume override (0 to 100)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "oto", "Audio backend (oto or malgo)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if version, _ := cmd.Flags().GetBool("version"); version {
			cmd.Printf("chime version %s\n", Version)
			return nil
		}
		return cmd.Help()
	}

	c.rootCmd = rootCmd
	return c
}

// Run executes the CLI with the given arguments and I/O streams and returns
// the process exit code.
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	c.rootCmd.SetArgs(args[1:])
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)

	if err := c.rootCmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		slog.Error("command execution failed", "error", err)
		return 1
	}
	return 0
}

// loadConfig resolves the config file from the --config flag or the XDG
// default location. A missing file falls back to the desktop defaults; a
// present but invalid file is an error.
func (c *CLI) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
	}

	cfg, err := config.Load(c.fs, path)
	if err != nil {
		if exists, _ := afero.Exists(c.fs, path); exists {
			return nil, err
		}
		slog.Warn("config file not found, using desktop defaults", "path", path)
		cfg = desktopDefaults()
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// desktopDefaults is the configuration used when no config file exists. The
// pin assignment is meaningless off-device; the format is CD-quality stereo,
// which both desktop backends accept.
func desktopDefaults() *config.Config {
	zero := 0
	rate := 44100
	stereo := 2
	return &config.Config{
		Hardware: config.Hardware{
			BCLKPin:    &zero,
			LRCKPin:    &zero,
			DOUTPin:    &zero,
			SampleRate: &rate,
			Channels:   &stereo,
		},
		LogLevel: "warn",
	}
}

// session is one fully wired engine run: config loaded, logging configured,
// settings and history attached, engine initialized and enabled.
type session struct {
	cfg      *config.Config
	mgr      *engine.Manager
	settings settings.Store
	journal  *history.Recorder
}

// openSession builds and enables an engine from the command's flags.
func (c *CLI) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.FileLogging)

	store := c.openSettings()
	journal := c.openJournal()

	newOutput := c.newOutput
	if newOutput == nil {
		backend, _ := cmd.Flags().GetString("backend")
		switch backend {
		case "oto":
			newOutput = device.NewOto
		case "malgo":
			newOutput = device.NewMalgo
		default:
			return nil, fmt.Errorf("unknown audio backend %q", backend)
		}
	}

	// Assign the journal only when non-nil: a nil *history.Recorder stored
	// in the interface field would defeat the engine's Journal != nil guard.
	var engineJournal engine.Journal
	if journal != nil {
		engineJournal = journal
	}
	mgr := engine.New(engine.Options{
		Settings:  store,
		Removable: c.fs,
		NewOutput: newOutput,
		Journal:   engineJournal,
	})
	if err := mgr.Init(cfg.Device()); err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, fmt.Errorf("engine init failed: %w", err)
	}

	if volume, _ := cmd.Flags().GetInt("volume"); volume >= 0 {
		mgr.SetVolume(volume)
		slog.Debug("volume override applied", "volume", volume)
	}

	if err := mgr.SetEnabled(true); err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, fmt.Errorf("enabling audio output failed: %w", err)
	}

	return &session{cfg: cfg, mgr: mgr, settings: store, journal: journal}, nil
}

// openSettings loads the persistent settings store, falling back to an
// in-memory one when the config directory is unavailable.
func (c *CLI) openSettings() settings.Store {
	path, err := xdg.ConfigFile(filepath.Join("chime", "settings.json"))
	if err == nil {
		store, serr := settings.NewFileStore(c.fs, path)
		if serr == nil {
			return store
		}
		err = serr
	}
	slog.Warn("settings store unavailable, using in-memory settings", "error", err)
	return settings.NewMemory()
}

// openJournal opens the playback history database. History is best-effort:
// a failure is logged and playback proceeds without it.
func (c *CLI) openJournal() *history.Recorder {
	path, err := history.DefaultPath()
	if err == nil {
		if _, osOK := c.fs.(*afero.OsFs); !osOK {
			// History needs a real file; skip it when the CLI runs on a
			// memory filesystem in tests.
			return nil
		}
		journal, herr := history.Open(path)
		if herr == nil {
			return journal
		}
		err = herr
	}
	slog.Warn("playback history unavailable", "error", err)
	return nil
}

func (s *session) close() {
	// Shutdown, not SetEnabled(false): ending the process is not the user
	// switching sound off, so the persisted preference stays untouched.
	s.mgr.Shutdown()
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Error("error closing playback history", "error", err)
		}
	}
}
