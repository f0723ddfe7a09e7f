// Package cli implements codeboardctl, an operator tool that runs ranking
// and sync jobs against the configured store.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/types"
)

// ShowHelp prints usage information for codeboardctl.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Codeboard Control
=================

Runs ranking and sync jobs directly against the configured store. Settings
come from CODEBOARD_* variables, an optional .env file and CODEBOARD_CONFIG.

Usage:
  codeboardctl [options] <command> [args]

Commands:
  ranking            Print the current leaderboard
  rank <student>     Print one student's entry with a per-platform breakdown
  recompute          Recompute the ranking now
  sync               Sync every accepted or suspended link, then recompute
  retry-suspended    Retry suspended links whose cooldown elapsed, then recompute
  stats              Print service and store counters

Options:
  -department string   Only rank students of this department
  -batch string        Only rank students of this batch
  -platform string     Only rank students accepted on this platform
  -limit int           Maximum rows to print (default: server maximum)
  -no-color            Disable colored output
  -help                Show this help message

Examples:
  codeboardctl ranking -department CSE -limit 20
  codeboardctl -platform leetcode ranking
  codeboardctl sync
`)
}

// Run executes cfg.Command against b and writes the result to out.
func Run(ctx context.Context, cfg Config, b Backend, out io.Writer) error {
	if cfg.NoColor {
		color.NoColor = true
	}
	switch cfg.Command {
	case CommandRanking:
		f, err := filter(cfg)
		if err != nil {
			return err
		}
		entries, err := b.GetRanking(ctx, f)
		if err != nil {
			return fmt.Errorf("get ranking: %w", err)
		}
		renderRanking(out, entries)
		return nil
	case CommandRank:
		if len(cfg.Args) != 1 || strings.TrimSpace(cfg.Args[0]) == "" {
			return fmt.Errorf("%w: rank takes exactly one student id", ErrUsage)
		}
		entry, err := b.Rank(ctx, strings.TrimSpace(cfg.Args[0]))
		if err != nil {
			return fmt.Errorf("get rank: %w", err)
		}
		renderEntry(out, entry)
		return nil
	case CommandRecompute:
		return recompute(ctx, b, out)
	case CommandSync:
		return syncThenRecompute(ctx, b, out, b.RunScheduledSync, "sync")
	case CommandRetry:
		return syncThenRecompute(ctx, b, out, b.RunCooldownRetry, "cooldown retry")
	case CommandStats:
		stats, err := b.Stats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		renderStats(out, stats)
		return nil
	case "":
		return fmt.Errorf("%w: no command given", ErrUsage)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cfg.Command)
}

func filter(cfg Config) (types.Filter, error) {
	if cfg.Limit < 0 {
		return types.Filter{}, fmt.Errorf("%w: limit must not be negative", ErrUsage)
	}
	f := types.Filter{
		Department: strings.TrimSpace(cfg.Department),
		Batch:      strings.TrimSpace(cfg.Batch),
		Limit:      cfg.Limit,
	}
	if name := strings.TrimSpace(cfg.Platform); name != "" {
		p, err := model.ParsePlatform(strings.ToLower(name))
		if err != nil {
			return types.Filter{}, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		f.Platform = p
	}
	return f, nil
}

func recompute(ctx context.Context, b Backend, out io.Writer) error {
	r, err := b.Recompute(ctx)
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	fmt.Fprintf(out, "%s ranked %d students at %s\n",
		color.GreenString("✔"), len(r.Entries), r.ComputedAt.Format("2006-01-02 15:04:05 MST"))
	if r.AllZero && len(r.Entries) > 0 {
		fmt.Fprintln(out, color.YellowString("every student scored zero; ranks follow student id"))
	}
	return nil
}

func syncThenRecompute(ctx context.Context, b Backend, out io.Writer, run func(context.Context) error, name string) error {
	fmt.Fprintf(out, "%s running %s...\n", color.CyanString("→"), name)
	if err := run(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return recompute(ctx, b, out)
}
