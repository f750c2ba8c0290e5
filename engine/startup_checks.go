package engine

import (
	"fmt"
	"os"

	"github.com/drummonds/goPDF2Image/config"
	"github.com/drummonds/goPDF2Image/database"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig, err := database.FetchConfigFromDB(serverHandler.DB)
	if err != nil {
		Logger.Error("Error fetching config", "error", err)
		return err
	}
	ingressDirectoryChecks(serverConfig)
	outputDirectoryChecks(serverConfig)
	renderEngineChecks(serverHandler)
	return nil
}

// renderEngineChecks confirms a render engine was wired in
func renderEngineChecks(serverHandler *ServerHandler) error {
	if serverHandler.Engine == nil {
		Logger.Error("No render engine configured, conversion endpoints will fail")
		return fmt.Errorf("no render engine configured")
	}
	Logger.Info("Render engine ready")
	return nil
}

// ingressDirectoryChecks ensures the ingress directory exists
func ingressDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.IngressPath == "" {
		Logger.Warn("Ingress path not configured")
		return nil
	}

	// Check if directory exists
	ingressInfo, err := os.Stat(serverConfig.IngressPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create the directory
			Logger.Info("Creating ingress directory", "path", serverConfig.IngressPath)
			err = os.MkdirAll(serverConfig.IngressPath, 0755)
			if err != nil {
				Logger.Error("Failed to create ingress directory", "path", serverConfig.IngressPath, "error", err)
				return err
			}
			Logger.Info("Ingress directory created successfully", "path", serverConfig.IngressPath)
			return nil
		}
		Logger.Error("Error checking ingress directory", "path", serverConfig.IngressPath, "error", err)
		return err
	}

	// Check if it's actually a directory
	if !ingressInfo.IsDir() {
		Logger.Error("Ingress path exists but is not a directory", "path", serverConfig.IngressPath)
		return fmt.Errorf("ingress path is not a directory: %s", serverConfig.IngressPath)
	}

	Logger.Info("Ingress directory exists", "path", serverConfig.IngressPath)
	return nil
}

// outputDirectoryChecks ensures the conversion output directory exists
func outputDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.OutputPath == "" {
		Logger.Warn("Output path not configured")
		return nil
	}

	// Check if directory exists
	outputInfo, err := os.Stat(serverConfig.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create the directory
			Logger.Info("Creating output directory", "path", serverConfig.OutputPath)
			err = os.MkdirAll(serverConfig.OutputPath, 0755)
			if err != nil {
				Logger.Error("Failed to create output directory", "path", serverConfig.OutputPath, "error", err)
				return err
			}
			Logger.Info("Output directory created successfully", "path", serverConfig.OutputPath)
			return nil
		}
		Logger.Error("Error checking output directory", "path", serverConfig.OutputPath, "error", err)
		return err
	}

	// Check if it's actually a directory
	if !outputInfo.IsDir() {
		Logger.Error("Output path exists but is not a directory", "path", serverConfig.OutputPath)
		return fmt.Errorf("output path is not a directory: %s", serverConfig.OutputPath)
	}

	Logger.Info("Output directory exists", "path", serverConfig.OutputPath)
	return nil
}
