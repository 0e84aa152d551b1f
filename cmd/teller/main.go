package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/teller-cli/teller/internal/archive"
	"github.com/teller-cli/teller/internal/audio"
	"github.com/teller-cli/teller/internal/bankapi"
	"github.com/teller-cli/teller/internal/config"
	"github.com/teller-cli/teller/internal/conversation"
	"github.com/teller-cli/teller/internal/history"
	"github.com/teller-cli/teller/internal/identity"
	"github.com/teller-cli/teller/internal/logging"
	"github.com/teller-cli/teller/internal/telemetry"
	"github.com/teller-cli/teller/internal/tui"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("teller: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("teller", flag.ExitOnError)
	baseURL := fs.String("base-url", "", "Backend base URL (overrides config and TELLER_BASE_URL)")
	voiceName := fs.String("voice", "", "Synthesis voice name (overrides config)")
	dataDir := fs.String("data-dir", "", "Directory for sessions, transcripts, and logs")
	debug := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return err
	}

	manager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("locating config dir: %w", err)
	}
	cfg, err := manager.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *voiceName != "" {
		cfg.Voice = *voiceName
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	logger, err := logging.Setup(filepath.Join(cfg.DataDir, "logs"), *debug)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	// Telemetry shares the log directory; stdout belongs to the UI.
	telFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "logs", "telemetry.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening telemetry sink: %w", err)
	}
	defer telFile.Close()
	shutdownTelemetry, err := telemetry.Init(ctx, telFile)
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	defer shutdownTelemetry()

	chatStore := history.NewStore(filepath.Join(cfg.DataDir, "chat.json"), conversation.MessageContent, logger)
	voiceStore := history.NewStore(filepath.Join(cfg.DataDir, "voice.json"), conversation.VoiceMessageContent, logger)
	ident := identity.NewManager(filepath.Join(cfg.DataDir, "identity.json"), logger)

	var arch *archive.Archive
	var archiver conversation.Archiver
	if a, err := archive.Open(ctx, filepath.Join(cfg.DataDir, "transcripts.db"), logger); err != nil {
		logger.Warn("transcript archive unavailable", "error", err)
	} else {
		arch = a
		archiver = a
		defer a.Close()
	}

	client := bankapi.New(cfg.BaseURL, logger)

	player, perr := audio.NewPlayer()
	var playback conversation.Player = player
	if perr != nil {
		logger.Warn("audio playback unavailable", "error", perr)
		playback = silentPlayer{}
	}
	recorder, rerr := audio.NewRecorder(audio.MaxRecordingDuration)
	if rerr != nil {
		logger.Warn("audio capture unavailable", "error", rerr)
		recorder = nil
	}

	chat := conversation.NewController(chatStore, ident, client, archiver, logger)
	voice := conversation.NewVoice(voiceStore, ident, client, playback, archiver,
		cfg.Voice, filepath.Join(cfg.DataDir, "audio"), logger)

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	stopWatch, err := manager.Watch(watchCtx, logger, func(next *config.Config) {
		if *baseURL == "" && next.BaseURL != "" {
			client.SetBaseURL(next.BaseURL)
		}
	})
	if err != nil {
		logger.Warn("config watch unavailable", "error", err)
	} else {
		defer stopWatch()
	}

	model := tui.NewModel(tui.Deps{
		Chat:       chat,
		Voice:      voice,
		ChatStore:  chatStore,
		VoiceStore: voiceStore,
		Archive:    arch,
		Recorder:   recorder,
		BaseURL:    client.BaseURL,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	chat.Subscribe(func() { program.Send(tui.RefreshMsg{}) })
	voice.Subscribe(func() { program.Send(tui.RefreshMsg{}) })

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	if recorder != nil {
		recorder.Stop()
	}
	voice.StopPlayback()
	slog.Info("shutting down")
	return nil
}

// silentPlayer stands in when no playback tool is installed. Replies still
// render as text; done fires immediately so turn state settles.
type silentPlayer struct{}

func (silentPlayer) Play(_ string, done func(error)) error {
	if done != nil {
		go done(nil)
	}
	return nil
}

func (silentPlayer) Stop() {}
