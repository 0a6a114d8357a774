// Lecsi TUI - A terminal client for the Lecsi study assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/lecsihq/lecsi-tui/internal/api"
	"github.com/lecsihq/lecsi-tui/internal/chat"
	"github.com/lecsihq/lecsi-tui/internal/config"
	"github.com/lecsihq/lecsi-tui/internal/refcache"
	"github.com/lecsihq/lecsi-tui/internal/resolve"
	"github.com/lecsihq/lecsi-tui/internal/session"
	"github.com/lecsihq/lecsi-tui/internal/storage"
	"github.com/lecsihq/lecsi-tui/internal/ui/chatview"
	"github.com/lecsihq/lecsi-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("lecsi-tui %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "lecsi-tui requires an interactive terminal")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Token store watches the credential file so a re-login in another
	// terminal takes effect without restarting the TUI.
	tokens := api.NewFileTokenStore(cfg.Backend.TokenPath)
	defer tokens.Close()
	if err := tokens.Watch(); err != nil {
		return fmt.Errorf("failed to watch token file: %w", err)
	}

	client := api.NewClient(cfg.Backend.BaseURL, tokens).
		WithMaxRetries(cfg.Backend.MaxRetries).
		WithTimeout(cfg.RequestTimeout())

	state, err := storage.Open(cfg.Chat.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer state.Close()

	cache := refcache.New(client)
	resolver := resolve.New(cache, client)
	sessions := session.NewStore(client, state, cfg.SessionCacheTTL())
	controller := chat.NewController(client, sessions, cfg.Chat.ThinkMode)

	theme := styles.NewTheme(cfg.UI.Theme)
	view := chatview.New(ctx, theme, controller, sessions, resolver, cache, cfg.BannerDuration())

	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithMouseCellMotion())
	view.AttachProgram(p)

	_, err = p.Run()
	return err
}
