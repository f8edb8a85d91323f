package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/detached-sh/detached/internal/logging"
	"github.com/detached-sh/detached/internal/session"
)

const Version = "0.6.1"

func main() {
	initColorProfile()

	args := os.Args[1:]
	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch args[0] {
	case "version", "-v", "--version":
		fmt.Printf("detached v%s\n", Version)
		return
	case "help", "-h", "--help":
		printHelp()
		return
	}

	cfg, err := session.LoadSettings()
	if err != nil {
		fatal("%v", err)
	}

	logging.Init(logging.Config{
		LogDir:     cfg.DBDir,
		Level:      cfg.Logs.Level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		Compress:   true,
		Debug:      os.Getenv("DETACHED_DEBUG") != "",
	})
	defer logging.Shutdown()

	switch args[0] {
	case "run":
		handleRun(cfg, args[1:])
	case "attach", "a":
		handleAttach(cfg, args[1:])
	case "view":
		handleView(cfg, args[1:])
	case "list", "ls":
		handleList(cfg, args[1:])
	case "status":
		handleStatus(cfg, args[1:])
	case "kill":
		handleKill(cfg, args[1:])
	case "delete", "rm":
		handleDelete(cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", args[0])
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: detached <command> [options]")
	fmt.Println()
	fmt.Println("Run shell commands in detachable dtach sessions that survive")
	fmt.Println("client disconnects, and manage their output and exit status.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run [-attach] <command...>   Start a command in a new detached session")
	fmt.Println("  attach <id|query>            Re-attach to a running session")
	fmt.Println("  view [-f] <id|query>         Print (or follow) a session's output")
	fmt.Println("  list [-json]                 List known sessions")
	fmt.Println("  status <id|query>            Show a session's state and outcome")
	fmt.Println("  kill <id|query>              Terminate a session's process tree")
	fmt.Println("  delete <id|query>            Remove a session and its log")
	fmt.Println("  version                      Print version")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  detached run make -j8 test")
	fmt.Println("  detached run -attach 'sleep 10 && echo done'")
	fmt.Println("  detached attach make")
	fmt.Println("  detached view -f make")
}

// initColorProfile configures lipgloss output based on terminal
// capabilities, with an environment override.
func initColorProfile() {
	// DETACHED_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("DETACHED_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	if colorTerm := os.Getenv("COLORTERM"); colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
