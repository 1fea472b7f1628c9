// Command emgctl is the read-only operator console (C11): a terminal
// dashboard over the session queue, showing each session's code, status,
// elapsed time, and last structured error, with a single write-adjacent
// action — copying a session code to the clipboard for pasting into a
// support ticket or chat.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clinictrack/emgcore/internal/config"
	"github.com/clinictrack/emgcore/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults apply if absent)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	dataStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer dataStore.Close()

	m := newModel(dataStore)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("emgctl:", err)
	}
}
