package database

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

// TestEphemeralPostgres exercises the repository against a throwaway
// PostgreSQL server. Requires postgres binaries on PATH, so it is skipped
// in short mode.
func TestEphemeralPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ephemeral postgres test in short mode")
	}

	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	db, err := SetupEphemeralPostgresDatabase()
	if err != nil {
		t.Skipf("Could not start ephemeral postgres: %v", err)
	}
	defer db.Close()

	conv := &Conversion{
		ID:         ulid.Make(),
		Source:     "https://example.com/report.pdf",
		Pages:      2,
		Resolution: 300,
		Format:     "jpg",
		OutputDir:  "/tmp/out",
		Outputs:    []string{"/tmp/out/report1.jpg", "/tmp/out/report2.jpg"},
		CreatedAt:  time.Now(),
	}

	if err := db.SaveConversion(conv); err != nil {
		t.Fatalf("Failed to save conversion: %v", err)
	}

	retrieved, err := db.GetConversionByULID(conv.ID.String())
	if err != nil {
		t.Fatalf("Failed to retrieve conversion: %v", err)
	}
	if retrieved.Resolution != 300 {
		t.Errorf("Expected resolution 300, got %d", retrieved.Resolution)
	}

	job, err := db.CreateJob(JobTypeConversion, "postgres job test")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := db.CompleteJob(job.ID, ""); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}
}
