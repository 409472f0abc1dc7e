// Package mcpserver exposes reminder operations as MCP tools, so
// assistants can manage reminders over the Model Context Protocol. Each
// tool maps to one service operation and takes the owner's mobile
// number as an argument.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/lifecycle"
	"github.com/mayurbt12/reminder-service/internal/service"
)

const (
	serverName    = "reminder-service"
	serverVersion = "1.0.0"
)

// Service is the subset of the reminder service the MCP tools need.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (domain.Reminder, error)
	Get(ctx context.Context, ownerID, id string) (domain.Reminder, error)
	Update(ctx context.Context, ownerID, id string, changes lifecycle.Changes) (domain.Reminder, error)
	Complete(ctx context.Context, ownerID, id string) (domain.Reminder, error)
	Cancel(ctx context.Context, ownerID, id string) (domain.Reminder, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string, in service.ListInput) ([]domain.Reminder, error)
	Search(ctx context.Context, ownerID, query string) ([]domain.Reminder, error)
	CheckDue(ctx context.Context, ownerID string, asOf time.Time) ([]domain.Reminder, error)
}

// Server is the MCP server for reminder management.
type Server struct {
	mcpServer *server.MCPServer
	svc       Service
}

// NewServer creates a new reminder MCP server backed by the given service.
func NewServer(svc Service) *Server {
	s := &Server{svc: svc}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("create_reminder",
			mcp.WithDescription("Create a new reminder with a title, due time, optional description, priority and destination"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("due_at", mcp.Required(), mcp.Description("Due time in RFC3339 format (e.g. 2025-01-15T09:00:00Z)")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("priority", mcp.Description("Priority: low, medium, high (default: medium)")),
			mcp.WithString("destination_mobile", mcp.Description("Notification destination, defaults to user_mobile")),
		),
		s.handleCreateReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List the user's reminders, optionally filtered by status"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("status", mcp.Description("Filter by status: pending, completed, cancelled, or empty for all")),
		),
		s.handleListReminders,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_reminder",
			mcp.WithDescription("Get a single reminder by ID"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleGetReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's fields (title, description, due_at, priority)"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("due_at", mcp.Description("New due time in RFC3339 format")),
			mcp.WithString("priority", mcp.Description("New priority: low, medium, high")),
		),
		s.handleUpdateReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_reminder",
			mcp.WithDescription("Mark a reminder as completed"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCompleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("cancel_reminder",
			mcp.WithDescription("Cancel a reminder without deleting it"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCancelReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("check_due_reminders",
			mcp.WithDescription("Get the user's pending reminders that are due now or overdue"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("as_of", mcp.Description("Reference instant in RFC3339 format (default: now)")),
		),
		s.handleCheckDue,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("search_reminders",
			mcp.WithDescription("Search the user's reminders by title or description"),
			mcp.WithString("user_mobile", mcp.Required(), mcp.Description("Owner's mobile number in E.164 format")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		),
		s.handleSearchReminders,
	)
}

func (s *Server) handleCreateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("user_mobile", "")
	title := req.GetString("title", "")
	dueAtStr := req.GetString("due_at", "")

	if owner == "" {
		return mcp.NewToolResultError("user_mobile is required"), nil
	}
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	if dueAtStr == "" {
		return mcp.NewToolResultError("due_at is required"), nil
	}

	dueAt, err := time.Parse(time.RFC3339, dueAtStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid due_at format: %v (use RFC3339, e.g. 2025-01-15T09:00:00Z)", err)), nil
	}

	created, err := s.svc.Create(ctx, service.CreateInput{
		OwnerID:       owner,
		DestinationID: req.GetString("destination_mobile", ""),
		Title:         title,
		Description:   req.GetString("description", ""),
		DueAt:         dueAt,
		Priority:      req.GetString("priority", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create reminder: %v", err)), nil
	}

	return jsonResult(created)
}

func (s *Server) handleListReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("user_mobile", "")
	if owner == "" {
		return mcp.NewToolResultError("user_mobile is required"), nil
	}

	reminders, err := s.svc.List(ctx, owner, service.ListInput{Status: req.GetString("status", "")})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}
	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	return jsonResult(reminders)
}

func (s *Server) handleGetReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}

	reminder, err := s.svc.Get(ctx, owner, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get reminder: %v", err)), nil
	}

	return jsonResult(reminder)
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}

	var changes lifecycle.Changes
	if v := req.GetString("title", ""); v != "" {
		changes.Title = &v
	}
	if v := req.GetString("description", ""); v != "" {
		changes.Description = &v
	}
	if v := req.GetString("due_at", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid due_at: %v", err)), nil
		}
		changes.DueAt = &t
	}
	if v := req.GetString("priority", ""); v != "" {
		p := domain.Priority(v)
		changes.Priority = &p
	}

	updated, err := s.svc.Update(ctx, owner, id, changes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update reminder: %v", err)), nil
	}

	return jsonResult(updated)
}

func (s *Server) handleCompleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}

	if _, err := s.svc.Complete(ctx, owner, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s marked as completed.", id)), nil
}

func (s *Server) handleCancelReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}

	if _, err := s.svc.Cancel(ctx, owner, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to cancel reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s cancelled.", id)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.svc.Delete(ctx, owner, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete reminder: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s deleted.", id)), nil
}

func (s *Server) handleCheckDue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("user_mobile", "")
	if owner == "" {
		return mcp.NewToolResultError("user_mobile is required"), nil
	}

	var asOf time.Time
	if raw := req.GetString("as_of", ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid as_of format: %v (use RFC3339, e.g. 2025-01-15T09:00:00Z)", err)), nil
		}
		asOf = t
	}

	due, err := s.svc.CheckDue(ctx, owner, asOf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to check due reminders: %v", err)), nil
	}
	if len(due) == 0 {
		return mcp.NewToolResultText("No due reminders."), nil
	}

	return jsonResult(due)
}

func (s *Server) handleSearchReminders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner := req.GetString("user_mobile", "")
	query := req.GetString("query", "")
	if owner == "" {
		return mcp.NewToolResultError("user_mobile is required"), nil
	}
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	results, err := s.svc.Search(ctx, owner, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search reminders: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No reminders matched."), nil
	}

	return jsonResult(results)
}

func ownerAndID(req mcp.CallToolRequest) (owner, id string, errResult *mcp.CallToolResult) {
	owner = req.GetString("user_mobile", "")
	id = req.GetString("id", "")
	if owner == "" {
		return "", "", mcp.NewToolResultError("user_mobile is required")
	}
	if id == "" {
		return "", "", mcp.NewToolResultError("id is required")
	}
	return owner, id, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}
