// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// DemoTemplateGUID is the template inserted by Seed.
const DemoTemplateGUID = "demo-business-card"

//go:embed seeddata/demo-template.json
var demoTemplate []byte

// Seed populates the database with development data: a demo template
// description cached as if fetched from the rendering service, so a
// session can be opened without one.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM template_descriptions WHERE guid = $1", DemoTemplateGUID).Scan(&count); err != nil {
		return fmt.Errorf("seed check templates: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	sum := sha256.Sum256(demoTemplate)
	_, err := db.Exec(`
		INSERT INTO template_descriptions (guid, description, checksum)
		VALUES ($1, $2, $3)
	`, DemoTemplateGUID, string(demoTemplate), hex.EncodeToString(sum[:]))
	if err != nil {
		return fmt.Errorf("seed insert template: %w", err)
	}

	slog.Info("database seeded", "template", DemoTemplateGUID)
	return nil
}
