// cmd/twindeck/main.go
//
// This is the entry point for the twindeck TUI.
// When you run `twindeck` from any directory, this is what executes.
//
// Flow:
// 1. Initialize the .twindeck project directory
// 2. Wire the journal, store, registries and the OAuth callback server
// 3. Launch the TUI

package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/twindeck/internal/auth"
	"github.com/kingrea/twindeck/internal/config"
	"github.com/kingrea/twindeck/internal/journal"
	"github.com/kingrea/twindeck/internal/market"
	"github.com/kingrea/twindeck/internal/store"
	"github.com/kingrea/twindeck/internal/tui"
	"github.com/kingrea/twindeck/internal/twin"
	"github.com/kingrea/twindeck/internal/wallet"
)

func main() {
	// The current working directory is the "project" the twin collection
	// lives in.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitProjectDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .twindeck directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	jnl, err := journal.New(cfg.JournalPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening activity journal: %v\n", err)
		os.Exit(1)
	}

	fileStore := store.NewFileStore(cfg.StateDir())
	registry := twin.NewRegistry(fileStore, jnl)
	catalog := market.NewCatalog(fileStore, registry, jnl)
	localWallet := wallet.NewLocalWallet("")

	handshake := auth.NewHandshake(auth.Settings{
		ClientID:    cfg.Project.Auth.ClientID,
		AuthURL:     cfg.Project.Auth.AuthURL,
		RedirectURI: cfg.RedirectURI(),
	}, fileStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	callback := auth.NewCallbackServer(auth.ServerSettings{
		Port: cfg.Project.Auth.CallbackPort,
	}, handshake, auth.WithServerLogger(journalLogger{jnl}))
	if err := callback.Start(ctx); err != nil {
		// The TUI still works without sign-in; note it and move on.
		jnl.Warn("OAuth callback server unavailable: %v", err)
	} else {
		defer func() { _ = callback.Shutdown(context.Background()) }()
	}

	app, err := tui.NewApp(tui.Deps{
		Config:      cfg,
		Journal:     jnl,
		Registry:    registry,
		Catalog:     catalog,
		Wallet:      localWallet,
		Handshake:   handshake,
		AuthResults: callback.Results(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building TUI: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// journalLogger adapts the activity journal to the callback server's Printf
// logger.
type journalLogger struct {
	jnl *journal.Journal
}

func (l journalLogger) Printf(format string, args ...any) {
	l.jnl.Info(format, args...)
}
