package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drummonds/goPDF2Image/config"
	"github.com/drummonds/goPDF2Image/database"
	"github.com/drummonds/goPDF2Image/pdf2image"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Engine       pdf2image.Engine
}

// ingressJobFunc scans the ingress folder and converts every PDF found
func (serverHandler *ServerHandler) ingressJobFunc(serverConfig config.ServerConfig, db database.Repository) {
	// Add panic recovery to prevent entire application crash
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in ingress job", "panic", r)
		}
	}()

	Logger.Info("Starting ingress job on folder", "path", serverConfig.IngressPath)
	ingressFiles, err := scanIngressFolder(serverConfig.IngressPath)
	if err != nil {
		Logger.Error("Error reading files in from ingress", "error", err)
		return
	}

	for _, filePath := range ingressFiles {
		Logger.Debug("Starting conversion for file", "filePath", filePath)
		if _, err := serverHandler.convertIngressFile(filePath, serverConfig, db); err != nil {
			Logger.Error("Unable to convert ingress file", "filePath", filePath, "error", err)
		}
	}
}

// ingressJobFuncWithTracking wraps the ingress job with progress tracking
func (serverHandler *ServerHandler) ingressJobFuncWithTracking(serverConfig config.ServerConfig, db database.Repository, jobID ulid.ULID) {
	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in ingress job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	// Mark job as running
	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, "Scanning ingress folder"); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}

	Logger.Info("Starting ingress job with tracking", "path", serverConfig.IngressPath, "jobID", jobID)

	ingressFiles, err := scanIngressFolder(serverConfig.IngressPath)
	if err != nil {
		Logger.Error("Error scanning ingress folder", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Scan failed: %v", err))
		return
	}

	totalFiles := len(ingressFiles)
	if totalFiles == 0 {
		Logger.Info("No files to process in ingress folder")
		db.CompleteJob(jobID, `{"filesProcessed": 0, "message": "No files found"}`)
		return
	}

	Logger.Info("Found files to process", "count", totalFiles)
	processedFiles := 0
	errorCount := 0
	pagesRendered := 0

	for i, filePath := range ingressFiles {
		fileName := filepath.Base(filePath)

		stepMsg := fmt.Sprintf("[%d/%d] Converting %s", i+1, totalFiles, fileName)
		db.UpdateJobProgress(jobID, int(float64(i)/float64(totalFiles)*100), stepMsg)

		conv, err := serverHandler.convertIngressFile(filePath, serverConfig, db)
		if err != nil {
			Logger.Error("Unable to convert ingress file", "filePath", filePath, "error", err)
			errorCount++
			continue
		}
		processedFiles++
		pagesRendered += conv.Pages
	}

	summary := database.JobSummary{
		FilesProcessed: processedFiles,
		FilesTotal:     totalFiles,
		PagesRendered:  pagesRendered,
		Errors:         errorCount,
	}
	result, err := json.Marshal(summary)
	if err != nil {
		Logger.Error("Unable to marshal job summary", "error", err)
		result = []byte("{}")
	}
	db.CompleteJob(jobID, string(result))
	Logger.Info("Ingress job complete", "processed", processedFiles, "errors", errorCount, "pages", pagesRendered)
}

// scanIngressFolder walks the ingress folder and returns the PDF files found
func scanIngressFolder(ingressPath string) ([]string, error) {
	var ingressFiles []string
	err := filepath.Walk(ingressPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			Logger.Info("Skipping non-PDF file", "filePath", path)
			return nil
		}
		ingressFiles = append(ingressFiles, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ingressFiles, nil
}

// convertIngressFile renders every page of one PDF into the output folder
// and records the conversion. Output files land in
// {OutputPath}/{basename}/{basename}{page}.{format}.
func (serverHandler *ServerHandler) convertIngressFile(filePath string, serverConfig config.ServerConfig, db database.Repository) (*database.Conversion, error) {
	start := time.Now()
	baseName := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	outputDir := filepath.Join(serverConfig.OutputPath, baseName)
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	converter, err := pdf2image.NewConverter(filePath, pdf2image.WithEngine(serverHandler.Engine))
	if err != nil {
		return nil, err
	}
	defer converter.Close()

	converter.SetResolution(serverConfig.DefaultResolution)
	if err := converter.SetFormat(serverConfig.DefaultFormat); err != nil {
		return nil, err
	}

	outputs, err := converter.WriteAll(outputDir, baseName)
	if err != nil {
		return nil, fmt.Errorf("conversion failed for %s: %w", filePath, err)
	}

	conv, err := database.NewConversion(filePath, len(outputs), serverConfig.DefaultResolution,
		converter.OutputFormat(), outputDir, outputs, time.Since(start))
	if err != nil {
		return nil, err
	}
	if err := db.SaveConversion(conv); err != nil {
		Logger.Error("Unable to save conversion record", "source", filePath, "error", err)
	}

	if serverConfig.IngressDelete {
		if err := os.Remove(filePath); err != nil {
			Logger.Error("Unable to remove ingress file after conversion", "filePath", filePath, "error", err)
		}
	}

	Logger.Info("Converted document", "source", filePath, "pages", len(outputs), "outputDir", outputDir)
	return conv, nil
}
