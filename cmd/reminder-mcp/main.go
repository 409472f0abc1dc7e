// Command reminder-mcp exposes the reminder service over the Model
// Context Protocol on stdio, so LLM clients can manage reminders as
// tools.
//
// Usage:
//
//	./reminder-mcp          # Start MCP server (stdio)
//	./reminder-mcp --help   # Show help
//
// Environment:
//
//	DATABASE_URL  PostgreSQL URL or SQLite path (default: "file:reminders.db")
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mayurbt12/reminder-service/internal/config"
	"github.com/mayurbt12/reminder-service/internal/mcpserver"
	"github.com/mayurbt12/reminder-service/internal/service"
	"github.com/mayurbt12/reminder-service/internal/store"
	"github.com/mayurbt12/reminder-service/internal/store/postgres"
	"github.com/mayurbt12/reminder-service/internal/store/sqlite"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	cfg := config.Load()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	svc := service.New(st, service.Config{
		MaxRemindersPerOwner: cfg.MaxRemindersPerUser,
		ConflictRetries:      cfg.ConflictMaxRetries,
	})

	s := mcpserver.NewServer(svc)

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(cfg config.Config) (store.Store, func() error, error) {
	if cfg.UsesPostgres() {
		st, err := postgres.Open(cfg.DatabaseURL, cfg.DBOpTimeout)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	st, err := sqlite.Open(cfg.SQLitePath())
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func printHelp() {
	fmt.Println(`reminder-mcp - reminder management over the Model Context Protocol

USAGE:
    reminder-mcp          Start MCP server (communicates via stdio)
    reminder-mcp --help   Show this help

ENVIRONMENT:
    DATABASE_URL  PostgreSQL URL or SQLite path
                  Default: file:reminders.db

TOOLS:
    create_reminder      Create a reminder (user_mobile, title, due_at, ...)
    list_reminders       List a user's reminders (optional status filter)
    get_reminder         Fetch one reminder by id
    update_reminder      Update reminder fields
    complete_reminder    Mark a reminder as completed
    cancel_reminder      Cancel a pending reminder
    delete_reminder      Delete a reminder permanently
    check_due_reminders  List reminders that are due or overdue
    search_reminders     Search reminders by title or description

CONFIGURATION:
    Add to your MCP client config:
    {
      "mcpServers": {
        "reminders": {
          "command": "/path/to/reminder-mcp",
          "args": []
        }
      }
    }`)
}
