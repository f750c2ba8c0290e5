package database

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/drummonds/goPDF2Image/config"
	"github.com/oklog/ulid/v2"
)

// Conversion records one completed document conversion
type Conversion struct {
	ID         ulid.ULID `json:"id"`
	Source     string    `json:"source"` // path or URL as given by the caller
	Pages      int       `json:"pages"`
	Resolution int       `json:"resolution"`
	Format     string    `json:"format"`
	OutputDir  string    `json:"outputDir"`
	Outputs    []string  `json:"outputs"` // produced files in page order
	DurationMS int64     `json:"durationMS"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Repository defines database operations
type Repository interface {
	Close() error
	SaveConversion(conv *Conversion) error
	GetConversionByULID(ulidStr string) (*Conversion, error)
	GetRecentConversions(limit int) ([]Conversion, error)
	GetAllConversions() ([]Conversion, error)
	DeleteConversion(ulidStr string) error
	SaveConfig(cfg *config.ServerConfig) error
	GetConfig() (*config.ServerConfig, error)
	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// FetchConfigFromDB pulls the server config from the database
func FetchConfigFromDB(db Repository) (config.ServerConfig, error) {
	serverConfig, err := db.GetConfig()
	if err != nil {
		Logger.Error("Unable to fetch server config from db", "error", err)
		return config.ServerConfig{}, err
	}
	return *serverConfig, nil
}

// WriteConfigToDB writes the serverconfig to the database for later retrieval
func WriteConfigToDB(serverConfig config.ServerConfig, db Repository) {
	serverConfig.ID = 1 // config is stored as a single row
	err := db.SaveConfig(&serverConfig)
	if err != nil {
		Logger.Error("Unable to write server config to database", "error", err)
	}
}

// NewConversion builds a conversion record with a fresh ULID
func NewConversion(source string, pages, resolution int, format, outputDir string, outputs []string, duration time.Duration) (*Conversion, error) {
	now := time.Now()
	newULID, err := CalculateULID(now)
	if err != nil {
		Logger.Error("Cannot generate ULID", "source", source, "error", err)
		return nil, err
	}
	return &Conversion{
		ID:         newULID,
		Source:     source,
		Pages:      pages,
		Resolution: resolution,
		Format:     format,
		OutputDir:  outputDir,
		Outputs:    outputs,
		DurationMS: duration.Milliseconds(),
		CreatedAt:  now,
	}, nil
}

// CalculateULID generates a ULID for the given time
func CalculateULID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(time), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}
