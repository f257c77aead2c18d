/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsfloor/lineplan/internal/cache"
	"github.com/opsfloor/lineplan/internal/db"
	"github.com/opsfloor/lineplan/internal/events"
	"github.com/opsfloor/lineplan/internal/optimizer"
	"github.com/opsfloor/lineplan/internal/store"
)

// Optimize flags
var (
	optimizeDate   string
	optimizeDryRun bool
	optimizeTrace  bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run a one-shot day optimization pass",
	Long: `Packs the movable runs of one calendar day into the earliest feasible
slots and persists the relocations. Top-seller runs and runs that have
already started never move.

Examples:
  lineplan optimize --date 2026-09-01
  lineplan optimize --date 2026-09-01 --dry-run --trace`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVar(&optimizeDate, "date", "", "Day to optimize, YYYY-MM-DD (default: today)")
	optimizeCmd.Flags().BoolVar(&optimizeDryRun, "dry-run", false, "Compute placements without persisting them")
	optimizeCmd.Flags().BoolVar(&optimizeTrace, "trace", false, "Print the per-run decision trace")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	loc := cfg.Location()

	day := time.Now().In(loc)
	if optimizeDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", optimizeDate, loc)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", optimizeDate, err)
		}
		day = parsed
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	ctx := context.Background()
	st := store.New(database, cache.New(ctx, cache.Config{RedisAddr: cfg.RedisAddr, RedisPassword: cfg.RedisPassword, RedisDB: cfg.RedisDB}, logger), logger)
	bus := events.NewBus()

	var result optimizer.Result
	if optimizeDryRun {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		result = optimizer.Pass(snap, day, time.Now(), loc)
	} else {
		svc := optimizer.New(st, bus, loc, logger)
		result, err = svc.OptimizeDay(ctx, day)
		if err != nil {
			return fmt.Errorf("optimize day: %w", err)
		}
	}

	fmt.Printf("Optimization %s for %s:\n", modeLabel(optimizeDryRun), day.Format("2006-01-02"))
	fmt.Printf("  Relocated:   %d\n", result.Relocated)
	fmt.Printf("  Unoptimized: %d\n", result.Unoptimized)

	if optimizeTrace {
		fmt.Println("\nTrace:")
		for _, entry := range result.Trace {
			if entry.RunID != "" {
				fmt.Printf("  [%s] run=%s line=%s %s\n", entry.Outcome, entry.RunID, entry.LineID, entry.Detail)
			} else {
				fmt.Printf("  [%s] %s\n", entry.Outcome, entry.Detail)
			}
		}
	}

	return nil
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "complete (dry run)"
	}
	return "complete"
}
