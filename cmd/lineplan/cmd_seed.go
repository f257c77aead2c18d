/*
Copyright (C) 2026 Opsfloor Labs

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsfloor/lineplan/internal/db"
	"github.com/opsfloor/lineplan/internal/models"
)

// seedCatalog is the JSON shape accepted by `lineplan seed`.
type seedCatalog struct {
	Equipment []models.Equipment      `json:"equipment"`
	Products  []models.Product        `json:"products"`
	Lines     []models.ProductionLine `json:"lines"`
}

// Seed flags
var (
	seedFilePath string
	seedDryRun   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a plant catalog from a JSON file",
	Long: `Reads equipment, products, and production lines from a JSON catalog
file and upserts them into the database. Records without an id get one
assigned; records with an id are updated in place.

Example:
  lineplan seed --file plant-catalog.json --dry-run`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedFilePath, "file", "", "Path to catalog JSON file (required)")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Report what would change without writing")
	seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	data, err := os.ReadFile(seedFilePath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	var catalog seedCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	fmt.Printf("Catalog: %d equipment, %d products, %d lines\n",
		len(catalog.Equipment), len(catalog.Products), len(catalog.Lines))

	if seedDryRun {
		fmt.Println("Dry run, nothing written")
		return nil
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		for i := range catalog.Equipment {
			if catalog.Equipment[i].ID == "" {
				catalog.Equipment[i].ID = uuid.NewString()
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&catalog.Equipment[i]).Error; err != nil {
				return fmt.Errorf("upsert equipment %q: %w", catalog.Equipment[i].Name, err)
			}
		}
		for i := range catalog.Products {
			if catalog.Products[i].ID == "" {
				catalog.Products[i].ID = uuid.NewString()
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&catalog.Products[i]).Error; err != nil {
				return fmt.Errorf("upsert product %q: %w", catalog.Products[i].Name, err)
			}
		}
		for i := range catalog.Lines {
			if catalog.Lines[i].ID == "" {
				catalog.Lines[i].ID = uuid.NewString()
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&catalog.Lines[i]).Error; err != nil {
				return fmt.Errorf("upsert line %q: %w", catalog.Lines[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println("Seed complete")
	return nil
}
