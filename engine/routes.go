package engine

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/drummonds/goPDF2Image/database"
	"github.com/drummonds/goPDF2Image/pdf2image"
	"github.com/labstack/echo/v4"
)

// ConvertResponse carries rendered pages back to the caller
type ConvertResponse struct {
	Pages  []string `json:"pages"` // base64 encoded images, in page order
	Format string   `json:"format"`
	Count  int      `json:"count"`
	Error  string   `json:"error,omitempty"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health reports service health
// @Summary Health check
// @Description Returns service health status
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Router /health [get]
func (serverHandler *ServerHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ConvertDocument converts an uploaded PDF to images
// @Summary Convert a PDF to images
// @Description Accepts a multipart PDF upload and returns base64 encoded page images
// @Tags Conversion
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF file"
// @Param dpi query int false "Render resolution (default from server config)"
// @Param format query string false "Output format: jpg, jpeg or png"
// @Param page query int false "Single 1-indexed page to render (default 1)"
// @Param all query bool false "Render all pages"
// @Success 200 {object} ConvertResponse "Rendered pages"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Conversion failed"
// @Router /convert [post]
func (serverHandler *ServerHandler) ConvertDocument(c echo.Context) error {
	start := time.Now()

	tempPath, err := stageUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer os.Remove(tempPath)

	converter, err := pdf2image.NewConverter(tempPath, pdf2image.WithEngine(serverHandler.Engine))
	if err != nil {
		Logger.Error("Unable to create converter for upload", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Unable to open document",
		})
	}
	defer converter.Close()

	dpi := serverHandler.ServerConfig.DefaultResolution
	if dpiStr := c.QueryParam("dpi"); dpiStr != "" {
		if d, err := strconv.Atoi(dpiStr); err == nil && d > 0 {
			dpi = d
		}
	}
	converter.SetResolution(dpi)

	format := serverHandler.ServerConfig.DefaultFormat
	if formatParam := c.QueryParam("format"); formatParam != "" {
		format = formatParam
	}
	if err := converter.SetFormat(format); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	all := false
	if allStr := c.QueryParam("all"); allStr != "" {
		all, _ = strconv.ParseBool(allStr)
	}

	var pages []string
	if all {
		pages, err = renderAllPages(converter)
	} else {
		page := 1
		if pageStr := c.QueryParam("page"); pageStr != "" {
			if p, convErr := strconv.Atoi(pageStr); convErr == nil {
				page = p
			}
		}
		pages, err = renderSinglePage(converter, page)
	}
	if err != nil {
		Logger.Error("Conversion failed for upload", "error", err)
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]interface{}{
			"error": err.Error(),
		})
	}

	serverHandler.recordConversion(c, converter, len(pages), dpi, start)

	return c.JSON(http.StatusOK, ConvertResponse{
		Pages:  pages,
		Format: converter.OutputFormat(),
		Count:  len(pages),
	})
}

// renderSinglePage renders one page to base64
func renderSinglePage(converter *pdf2image.Converter, page int) ([]string, error) {
	if err := converter.SetPage(page); err != nil {
		return nil, err
	}
	handle, err := converter.Image("")
	if err != nil {
		return nil, err
	}
	data, err := handle.Bytes()
	if err != nil {
		return nil, err
	}
	return []string{base64.StdEncoding.EncodeToString(data)}, nil
}

// renderAllPages renders every page to base64, in page order
func renderAllPages(converter *pdf2image.Converter) ([]string, error) {
	total, err := converter.PageCount()
	if err != nil {
		return nil, err
	}
	pages := make([]string, 0, total)
	for page := 1; page <= total; page++ {
		rendered, err := renderSinglePage(converter, page)
		if err != nil {
			return nil, err
		}
		pages = append(pages, rendered...)
	}
	return pages, nil
}

// isClientError reports whether the conversion error was caused by bad input
func isClientError(err error) bool {
	return errors.Is(err, pdf2image.ErrDocumentNotFound) ||
		errors.Is(err, pdf2image.ErrInvalidFormat) ||
		errors.Is(err, pdf2image.ErrPageDoesNotExist)
}

// recordConversion persists a history row for an API conversion
func (serverHandler *ServerHandler) recordConversion(c echo.Context, converter *pdf2image.Converter, pages, dpi int, start time.Time) {
	source := "upload"
	if file, err := c.FormFile("pdf"); err == nil {
		source = file.Filename
	}
	conv, err := database.NewConversion(source, pages, dpi, converter.OutputFormat(), "", nil, time.Since(start))
	if err != nil {
		Logger.Error("Unable to build conversion record", "error", err)
		return
	}
	if err := serverHandler.DB.SaveConversion(conv); err != nil {
		Logger.Error("Unable to save conversion record", "error", err)
	}
}

// stageUpload writes the uploaded PDF to a temp file and returns its path
func stageUpload(c echo.Context) (string, error) {
	file, err := c.FormFile("pdf")
	if err != nil {
		return "", fmt.Errorf("no PDF file provided")
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("unable to read uploaded file")
	}
	defer src.Close()

	tempFile, err := os.CreateTemp("", "pdf2image-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("unable to create temp file")
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, src); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("unable to stage uploaded file")
	}
	return tempFile.Name(), nil
}

// GetDocumentInfo probes an uploaded PDF without rendering it
// @Summary Probe a PDF
// @Description Returns page count and a text preview for an uploaded PDF
// @Tags Conversion
// @Accept multipart/form-data
// @Produce json
// @Param pdf formData file true "PDF file"
// @Success 200 {object} pdf2image.DocumentInfo "Document metadata"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /document/info [post]
func (serverHandler *ServerHandler) GetDocumentInfo(c echo.Context) error {
	tempPath, err := stageUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer os.Remove(tempPath)

	info, err := pdf2image.Probe(tempPath)
	if err != nil {
		Logger.Error("Unable to probe document", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Unable to read document",
		})
	}
	// Hide the staged temp path from the caller
	info.Path = ""

	return c.JSON(http.StatusOK, info)
}

// GetConversions lists recent conversions
// @Summary List recent conversions
// @Description Retrieve recent conversion history
// @Tags Conversion
// @Produce json
// @Param limit query int false "Number of conversions to return (default: 20)"
// @Success 200 {array} database.Conversion "List of conversions"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /conversions [get]
func (serverHandler *ServerHandler) GetConversions(c echo.Context) error {
	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	conversions, err := serverHandler.DB.GetRecentConversions(limit)
	if err != nil {
		Logger.Error("Failed to get conversions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve conversions",
		})
	}

	if conversions == nil {
		conversions = []database.Conversion{}
	}

	return c.JSON(http.StatusOK, conversions)
}

// GetConversion retrieves one conversion by ID
// @Summary Get conversion by ID
// @Description Retrieve a single conversion record
// @Tags Conversion
// @Produce json
// @Param id path string true "Conversion ID (ULID)"
// @Success 200 {object} database.Conversion "Conversion details"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id} [get]
func (serverHandler *ServerHandler) GetConversion(c echo.Context) error {
	conversion, err := serverHandler.DB.GetConversionByULID(c.Param("id"))
	if err != nil {
		Logger.Error("Failed to get conversion", "id", c.Param("id"), "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Conversion not found",
		})
	}

	return c.JSON(http.StatusOK, conversion)
}

// DeleteConversion deletes a conversion record and its output files
// @Summary Delete a conversion
// @Description Removes a conversion record and any files it produced
// @Tags Conversion
// @Produce json
// @Param id path string true "Conversion ID (ULID)"
// @Success 200 {string} string "Conversion Deleted"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /conversions/{id} [delete]
func (serverHandler *ServerHandler) DeleteConversion(c echo.Context) error {
	ulidStr := c.Param("id")

	conversion, err := serverHandler.DB.GetConversionByULID(ulidStr)
	if err != nil {
		Logger.Error("Unable to find conversion to delete", "id", ulidStr, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Conversion not found",
		})
	}

	for _, output := range conversion.Outputs {
		if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
			Logger.Error("Unable to remove conversion output", "path", output, "error", err)
		}
	}

	if err := serverHandler.DB.DeleteConversion(ulidStr); err != nil {
		Logger.Error("Unable to delete conversion from database", "id", ulidStr, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to delete conversion",
		})
	}

	return c.JSON(http.StatusOK, "Conversion Deleted")
}

// RunIngestNow triggers the ingress job immediately
// @Summary Run ingress job
// @Description Scans the ingress folder and converts all PDFs found, with job tracking
// @Tags Admin
// @Produce json
// @Success 202 {object} database.Job "Job created"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /ingest [post]
func (serverHandler *ServerHandler) RunIngestNow(c echo.Context) error {
	serverConfig, err := database.FetchConfigFromDB(serverHandler.DB)
	if err != nil {
		Logger.Error("Unable to fetch config for ingest", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Unable to fetch server config",
		})
	}

	job, err := serverHandler.DB.CreateJob(database.JobTypeIngress, "Manual ingress run")
	if err != nil {
		Logger.Error("Unable to create ingress job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Unable to create job",
		})
	}

	go serverHandler.ingressJobFuncWithTracking(serverConfig, serverHandler.DB, job.ID)

	return c.JSON(http.StatusAccepted, job)
}

// RegisterRoutes attaches all API routes to the echo instance
func (serverHandler *ServerHandler) RegisterRoutes() {
	e := serverHandler.Echo

	// Conversion API routes
	e.GET("/api/health", serverHandler.Health)
	e.POST("/api/convert", serverHandler.ConvertDocument)
	e.POST("/api/document/info", serverHandler.GetDocumentInfo)
	e.GET("/api/conversions", serverHandler.GetConversions)
	e.GET("/api/conversions/:id", serverHandler.GetConversion)
	e.DELETE("/api/conversions/:id", serverHandler.DeleteConversion)

	// Admin API routes
	e.POST("/api/ingest", serverHandler.RunIngestNow)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
}
