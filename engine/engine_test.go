package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drummonds/goPDF2Image/config"
	"github.com/drummonds/goPDF2Image/database"
	"github.com/drummonds/goPDF2Image/pdf2image"
	"github.com/labstack/echo/v4"
)

// setupTestHandler creates a handler backed by an in-memory sqlite database
func setupTestHandler(t *testing.T, renderEngine pdf2image.Engine) (*echo.Echo, *ServerHandler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Logger = logger
	database.Logger = logger
	config.Logger = logger

	serverConfig := config.ServerConfig{
		DatabaseType:      "sqlite",
		DatabaseDbname:    ":memory:",
		IngressPath:       t.TempDir(),
		OutputPath:        t.TempDir(),
		IngressInterval:   10,
		IngressDelete:     true,
		DefaultResolution: 144,
		DefaultFormat:     "jpg",
	}

	db := database.NewRepository(serverConfig)
	t.Cleanup(func() { db.Close() })
	database.WriteConfigToDB(serverConfig, db)

	e := echo.New()
	e.HideBanner = true
	serverHandler := &ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Engine:       renderEngine,
	}
	serverHandler.RegisterRoutes()

	return e, serverHandler
}

func TestHealth(t *testing.T) {
	e, _ := setupTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v\nBody: %s", err, rec.Body.String())
	}
	if response.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", response.Status)
	}
}

func TestGetConversionsEmpty(t *testing.T) {
	e, _ := setupTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var conversions []database.Conversion
	if err := json.Unmarshal(rec.Body.Bytes(), &conversions); err != nil {
		t.Fatalf("Failed to parse response: %v\nBody: %s", err, rec.Body.String())
	}
	if len(conversions) != 0 {
		t.Errorf("Expected empty list, got %d conversions", len(conversions))
	}
}

func TestConversionLifecycle(t *testing.T) {
	e, serverHandler := setupTestHandler(t, nil)

	conv, err := database.NewConversion("/tmp/test.pdf", 2, 144, "png", "/tmp/out",
		[]string{"/tmp/out/test1.png", "/tmp/out/test2.png"}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to build conversion: %v", err)
	}
	if err := serverHandler.DB.SaveConversion(conv); err != nil {
		t.Fatalf("Failed to save conversion: %v", err)
	}

	t.Run("Get by ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+conv.ID.String(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var retrieved database.Conversion
		if err := json.Unmarshal(rec.Body.Bytes(), &retrieved); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if retrieved.Source != "/tmp/test.pdf" || retrieved.Pages != 2 {
			t.Errorf("Unexpected conversion returned: %+v", retrieved)
		}
	})

	t.Run("List includes conversion", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		var conversions []database.Conversion
		if err := json.Unmarshal(rec.Body.Bytes(), &conversions); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(conversions) != 1 {
			t.Errorf("Expected 1 conversion, got %d", len(conversions))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/conversions/"+conv.ID.String(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		req = httptest.NewRequest(http.MethodGet, "/api/conversions/"+conv.ID.String(), nil)
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404 after delete, got %d", rec.Code)
		}
	})
}

func TestJobEndpoints(t *testing.T) {
	e, serverHandler := setupTestHandler(t, nil)

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, "Converting test.pdf")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}

	t.Run("Get job by ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Invalid job ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-ulid", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("Recent jobs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		var jobs []database.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(jobs) != 1 {
			t.Errorf("Expected 1 job, got %d", len(jobs))
		}
	})

	t.Run("Active jobs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/active", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		var jobs []database.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if len(jobs) != 1 {
			t.Errorf("Expected 1 active job, got %d", len(jobs))
		}
	})
}

func TestRunIngestNowEmptyFolder(t *testing.T) {
	e, serverHandler := setupTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var job database.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	// The job runs in a goroutine, wait for it to finish
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		current, err := serverHandler.DB.GetJob(job.ID)
		if err != nil {
			t.Fatalf("Failed to get job: %v", err)
		}
		if current.Status == database.JobStatusCompleted {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("Ingress job did not complete in time")
}

func TestScanIngressFolder(t *testing.T) {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	dir := t.TempDir()

	mustWrite := func(path string) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create folder: %v", err)
		}
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
	}
	mustWrite(filepath.Join(dir, "a.pdf"))
	mustWrite(filepath.Join(dir, "b.PDF"))
	mustWrite(filepath.Join(dir, "notes.txt"))
	mustWrite(filepath.Join(dir, "nested", "c.pdf"))

	files, err := scanIngressFolder(dir)
	if err != nil {
		t.Fatalf("scanIngressFolder failed: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("Expected 3 PDF files, got %d: %v", len(files), files)
	}
	for _, f := range files {
		if filepath.Ext(f) != ".pdf" && filepath.Ext(f) != ".PDF" {
			t.Errorf("Non-PDF file picked up: %s", f)
		}
	}
}

func TestConvertDocumentNoFile(t *testing.T) {
	e, _ := setupTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/convert", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConvertDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping render test in short mode")
	}

	renderEngine, err := pdf2image.NewPDFiumEngine()
	if err != nil {
		t.Fatalf("Failed to create render engine: %v", err)
	}
	defer renderEngine.Close()

	e, _ := setupTestHandler(t, renderEngine)

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	if err := createSimpleTestPDF(pdfPath); err != nil {
		t.Fatalf("Failed to create test PDF: %v", err)
	}

	body, contentType := multipartPDF(t, pdfPath)
	req := httptest.NewRequest(http.MethodPost, "/api/convert?format=png", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response ConvertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Count != 1 || len(response.Pages) != 1 {
		t.Fatalf("Expected a single page, got count=%d pages=%d", response.Count, len(response.Pages))
	}
	if response.Format != "png" {
		t.Errorf("Expected png format, got %s", response.Format)
	}

	imgData, err := base64.StdEncoding.DecodeString(response.Pages[0])
	if err != nil {
		t.Fatalf("Page is not valid base64: %v", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(imgData))
	if err != nil {
		t.Fatalf("Page is not a valid image: %v", err)
	}
	if format != "png" {
		t.Errorf("Expected png image data, got %s", format)
	}
}

func TestIngressConversion(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping render test in short mode")
	}

	renderEngine, err := pdf2image.NewPDFiumEngine()
	if err != nil {
		t.Fatalf("Failed to create render engine: %v", err)
	}
	defer renderEngine.Close()

	_, serverHandler := setupTestHandler(t, renderEngine)

	pdfPath := filepath.Join(serverHandler.ServerConfig.IngressPath, "report.pdf")
	if err := createSimpleTestPDF(pdfPath); err != nil {
		t.Fatalf("Failed to create test PDF: %v", err)
	}

	conv, err := serverHandler.convertIngressFile(pdfPath, serverHandler.ServerConfig, serverHandler.DB)
	if err != nil {
		t.Fatalf("convertIngressFile failed: %v", err)
	}

	if conv.Pages != 1 {
		t.Errorf("Expected 1 page converted, got %d", conv.Pages)
	}
	wantOutput := filepath.Join(serverHandler.ServerConfig.OutputPath, "report", "report1.jpg")
	if len(conv.Outputs) != 1 || conv.Outputs[0] != wantOutput {
		t.Errorf("Expected output %s, got %v", wantOutput, conv.Outputs)
	}
	if _, err := os.Stat(wantOutput); err != nil {
		t.Errorf("Expected output file to exist: %v", err)
	}

	// IngressDelete is on, the source should be gone
	if _, err := os.Stat(pdfPath); !os.IsNotExist(err) {
		t.Error("Ingress file should be removed after conversion")
	}

	saved, err := serverHandler.DB.GetConversionByULID(conv.ID.String())
	if err != nil {
		t.Fatalf("Conversion was not recorded: %v", err)
	}
	if saved.Source != pdfPath {
		t.Errorf("Expected recorded source %s, got %s", pdfPath, saved.Source)
	}
}

func TestCleanupJobKeepsRecentJobs(t *testing.T) {
	_, serverHandler := setupTestHandler(t, nil)

	recent, err := serverHandler.DB.CreateJob(database.JobTypeConversion, "Recently finished")
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	if err := serverHandler.DB.CompleteJob(recent.ID, "{}"); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}

	cleanupJobFunc(serverHandler.DB)

	if _, err := serverHandler.DB.GetJob(recent.ID); err != nil {
		t.Errorf("Recently finished job should survive cleanup: %v", err)
	}

	jobs, err := serverHandler.DB.GetRecentJobs(10, 0)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	// The cleanup run records a job of its own
	var sawCleanup bool
	for _, job := range jobs {
		if job.Type == database.JobTypeCleanup && job.Status == database.JobStatusCompleted {
			sawCleanup = true
		}
	}
	if !sawCleanup {
		t.Error("Expected a completed cleanup job record")
	}
}

func TestStartupChecksCreateDirectories(t *testing.T) {
	_, serverHandler := setupTestHandler(t, nil)

	base := t.TempDir()
	serverConfig := serverHandler.ServerConfig
	serverConfig.IngressPath = filepath.Join(base, "ingress")
	serverConfig.OutputPath = filepath.Join(base, "images")
	database.WriteConfigToDB(serverConfig, serverHandler.DB)

	if err := serverHandler.StartupChecks(); err != nil {
		t.Fatalf("StartupChecks failed: %v", err)
	}

	for _, dir := range []string{serverConfig.IngressPath, serverConfig.OutputPath} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("Expected directory %s to be created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("Expected %s to be a directory", dir)
		}
	}
}

// multipartPDF builds a multipart body with the PDF under the "pdf" field
func multipartPDF(t *testing.T, pdfPath string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("pdf", filepath.Base(pdfPath))
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	f, err := os.Open(pdfPath)
	if err != nil {
		t.Fatalf("Failed to open test PDF: %v", err)
	}
	defer f.Close()
	if _, err := io.Copy(part, f); err != nil {
		t.Fatalf("Failed to copy PDF into form: %v", err)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

// createSimpleTestPDF creates a minimal valid PDF file for testing
func createSimpleTestPDF(path string) error {
	pdfContent := `%PDF-1.4
1 0 obj
<<
/Type /Catalog
/Pages 2 0 R
>>
endobj
2 0 obj
<<
/Type /Pages
/Kids [3 0 R]
/Count 1
>>
endobj
3 0 obj
<<
/Type /Page
/Parent 2 0 R
/MediaBox [0 0 612 792]
/Contents 4 0 R
/Resources <<
/Font <<
/F1 5 0 R
>>
>>
>>
endobj
4 0 obj
<<
/Length 45
>>
stream
BT
/F1 12 Tf
100 700 Td
(Test Document) Tj
ET
endstream
endobj
5 0 obj
<<
/Type /Font
/Subtype /Type1
/BaseFont /Helvetica
>>
endobj
xref
0 6
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
0000000115 00000 n
0000000241 00000 n
0000000336 00000 n
trailer
<<
/Size 6
/Root 1 0 R
>>
startxref
406
%%EOF`

	return os.WriteFile(path, []byte(pdfContent), 0644)
}
