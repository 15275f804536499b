package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bhandras/relaychat/internal/chat"
	"github.com/bhandras/relaychat/internal/config"
	"github.com/bhandras/relaychat/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("relaychat", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "relay URL")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "write logs to this file")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "verbose transport logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The UI owns the terminal; logs go to a file or nowhere.
	logger.SetLevel(cfg.Level())
	logger.SetOutput(io.Discard)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}
	logger.Infof("Starting relaychat: server=%s debounce=%s", cfg.ServerURL, cfg.TypingDebounce)

	engine := chat.NewEngine(chat.EngineConfig{
		ServerURL:      cfg.ServerURL,
		SocketPath:     cfg.SocketPath,
		TypingDebounce: cfg.TypingDebounce,
		Debug:          cfg.Debug,
	})
	defer engine.Close()

	if _, err := tea.NewProgram(newModel(engine), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
