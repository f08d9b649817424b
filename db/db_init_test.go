// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"errors"
	"testing"
)

func TestInitRequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	if err := Init(testContext(), ""); !errors.Is(err, ErrDatabaseURLEnvVarNotSet) {
		t.Fatalf("expected ErrDatabaseURLEnvVarNotSet, got %v", err)
	}
}

func TestOpenMigratorRequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	if _, err := OpenMigrator(testContext(), ""); !errors.Is(err, ErrDatabaseURLEnvVarNotSet) {
		t.Fatalf("expected ErrDatabaseURLEnvVarNotSet, got %v", err)
	}
}

func TestQueriesRequireConnection(t *testing.T) {
	if databaseReady {
		t.Skip("database connection is initialized")
	}

	ctx := testContext()

	if Ready() {
		t.Fatal("expected Ready to be false before Init")
	}

	if err := SyncSchema(ctx, "postgres://localhost/labinsight"); !errors.Is(err, ErrDatabaseConnectionNotInitialized) {
		t.Fatalf("SyncSchema: expected ErrDatabaseConnectionNotInitialized, got %v", err)
	}

	if _, err := ListUploads(ctx, 10); !errors.Is(err, ErrDatabaseConnectionNotInitialized) {
		t.Fatalf("ListUploads: expected ErrDatabaseConnectionNotInitialized, got %v", err)
	}

	if _, err := CreateUpload(ctx, CreateUploadInput{Filename: "a.csv"}); !errors.Is(err, ErrDatabaseConnectionNotInitialized) {
		t.Fatalf("CreateUpload: expected ErrDatabaseConnectionNotInitialized, got %v", err)
	}
}

func TestSchemaIsMigrated(t *testing.T) {
	resetDatabase(t)

	var count int

	err := pool.QueryRow(testContext(),
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name IN ('lab_uploads', 'lab_results', 'lab_summaries')`,
		testSchemaName,
	).Scan(&count)
	if err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}

	if count != 3 {
		t.Fatalf("expected 3 tables, got %d", count)
	}
}
