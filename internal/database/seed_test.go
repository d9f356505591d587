// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"testing"

	"webtoprint/internal/models"
)

func TestDemoTemplateIsValid(t *testing.T) {
	tmpl, err := models.NewTemplate(demoTemplate)
	if err != nil {
		t.Fatalf("demo template: %v", err)
	}
	if tmpl.GUID != DemoTemplateGUID || !tmpl.HasShapes() {
		t.Errorf("guid=%q shapes=%v", tmpl.GUID, tmpl.HasShapes())
	}
}

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed only inserts when the demo template is missing. Call it twice
	// without clearing, other packages may share the database.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM template_descriptions WHERE guid = $1", DemoTemplateGUID).Scan(&n); err != nil {
		t.Fatalf("count templates: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 demo template, got %d", n)
	}
}
