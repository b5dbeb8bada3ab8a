package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/edge-probe-mcp/internal/config"
	"github.com/ironsheep/edge-probe-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("edge-probe-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("edge-probe-mcp - MCP server for sub-pixel boundary probing")
			fmt.Println()
			fmt.Println("Usage: edge-probe-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Printf("  %s=debug    Enable debug logging\n", server.LogLevelEnv)
			fmt.Printf("  %s=<file.json>    Pipeline defaults (kernel length, persistence, ...)\n", config.EnvConfigPath)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv(server.LogLevelEnv) == "debug" {
		log.Printf("Edge Probe MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	srv := server.NewWithConfig(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
