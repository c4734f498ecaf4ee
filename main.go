package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	webview "github.com/webview/webview_go"

	"github.com/kartoza/topology-explorer/internal/config"
	"github.com/kartoza/topology-explorer/internal/server"
)

var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	modelPath := flag.String("model", "", "Path to the serialized model artifact (overrides config)")
	modelsDir := flag.String("models-dir", "", "Directory scanned for additional model artifacts")
	dataDir := flag.String("data-dir", "", "Directory for saved presets")
	headless := flag.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Topology Explorer v%s\n", version)
		os.Exit(0)
	}

	// Resolve configuration:
	// 1. Defaults, overlaid by the YAML file when given
	// 2. An installed model pack replaces the default model
	// 3. Explicit flags take priority
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	} else {
		logrus.SetLevel(level)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		logrus.Warnf("Could not load settings: %v", err)
	} else if artifact := settings.ModelPackArtifact(); artifact != "" {
		if _, err := os.Stat(artifact); err == nil {
			cfg.ModelPath = artifact
			logrus.Infof("Using model pack: %s", settings.ModelPackPath)
		} else {
			logrus.Warnf("Saved model pack artifact no longer exists: %s", artifact)
		}
	}

	if *port != 0 {
		cfg.Port = *port
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *modelsDir != "" {
		cfg.ModelsDir = *modelsDir
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if abs, err := filepath.Abs(cfg.ModelPath); err == nil {
		cfg.ModelPath = abs
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		logrus.Fatalf("Failed to find available port: %v", err)
	}
	if availablePort != cfg.Port {
		logrus.Infof("Port %d in use, using port %d instead", cfg.Port, availablePort)
	}
	cfg.Port = availablePort
	cfg.Version = version

	logrus.Infof("Topology Explorer v%s starting on port %d", version, cfg.Port)
	logrus.Infof("Model: %s", cfg.ModelPath)

	// Create and start the server
	srv, err := server.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(serverURL, 10*time.Second)

	if *headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil {
				logrus.Fatalf("Server error: %v", err)
			}
		case sig := <-stop:
			logrus.Infof("Received %v signal, shutting down...", sig)
			if err := srv.Stop(); err != nil {
				logrus.Errorf("Error during shutdown: %v", err)
			}
		}
		return
	}

	// GUI mode: open embedded WebView window
	logrus.Infof("Opening application window...")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Topology Explorer")
	w.SetSize(1100, 720, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				logrus.Errorf("Server error: %v", err)
			}
		case sig := <-stop:
			logrus.Infof("Received %v signal, shutting down...", sig)
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	logrus.Infof("Window closed, shutting down server...")
	if err := srv.Stop(); err != nil {
		logrus.Errorf("Error during shutdown: %v", err)
	}
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logrus.Warnf("Server may not be ready at %s", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
