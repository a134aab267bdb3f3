// Package mcp exposes the migration engine as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/armchr/junitmig/internal/engine"
	"github.com/armchr/junitmig/internal/model"
	"github.com/armchr/junitmig/internal/service"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	serverName    = "junitmig"
	serverVersion = "1.0.0"

	ToolNameMigrate  = "junit_migrate"
	ToolNameCleanups = "junit_cleanups"

	// MaxInputBytes bounds the total source size of one call.
	MaxInputBytes = 8 << 20
)

var (
	ErrNoFiles       = errors.New("files parameter is required and must not be empty")
	ErrEmptyPath     = errors.New("every file needs a path")
	ErrInputTooLarge = errors.New("files exceed maximum size")
	ErrBadOutput     = errors.New("output must be text or edits")
)

// MigrateInput is the input schema for the junit_migrate tool.
type MigrateInput struct {
	Files    []model.SourceFile `json:"files"              jsonschema:"Java sources to migrate; paths identify files in the result"`
	Cleanups []string           `json:"cleanups,omitempty" jsonschema:"optional cleanup identifiers (default: the default cleanup set)"`
	Output   string             `json:"output,omitempty"   jsonschema:"text for whole new file contents or edits for span replacements"`
}

// CleanupsInput is the input schema for the junit_cleanups tool.
type CleanupsInput struct {
	Patterns bool `json:"patterns,omitempty" jsonschema:"include the pattern entries of every cleanup"`
}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

type Server struct {
	inner   *mcpsdk.Server
	service *service.MigrationService
	logger  *zap.Logger
}

func NewServer(svc *service.MigrationService, logger *zap.Logger) *Server {
	inner := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcpsdk.ServerOptions{})

	s := &Server{inner: inner, service: svc, logger: logger}
	mcpsdk.AddTool(inner, &mcpsdk.Tool{
		Name:        ToolNameMigrate,
		Description: "Rewrite JUnit 3/4 test sources to JUnit 5. Returns the changed files and any warnings; nothing is written to disk.",
	}, s.handleMigrate)
	mcpsdk.AddTool(inner, &mcpsdk.Tool{
		Name:        ToolNameCleanups,
		Description: "List the available migration cleanups and which of them run by default.",
	}, s.handleCleanups)
	return s
}

// Run serves on stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) handleMigrate(ctx context.Context, _ *mcpsdk.CallToolRequest, input MigrateInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := validateMigrateInput(input); err != nil {
		return errorResult(err)
	}
	resp, err := s.service.Migrate(ctx, "", input.Files, input.Cleanups, engine.OutputMode(input.Output))
	if err != nil {
		s.logger.Warn("MCP migration failed", zap.Error(err))
		return errorResult(err)
	}
	return jsonResult(resp)
}

func (s *Server) handleCleanups(_ context.Context, _ *mcpsdk.CallToolRequest, input CleanupsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.service.Cleanups(input.Patterns))
}

func validateMigrateInput(input MigrateInput) error {
	if len(input.Files) == 0 {
		return ErrNoFiles
	}
	switch engine.OutputMode(input.Output) {
	case "", engine.OutputText, engine.OutputEdits:
	default:
		return fmt.Errorf("%w: %q", ErrBadOutput, input.Output)
	}
	total := 0
	for _, f := range input.Files {
		if f.Path == "" {
			return ErrEmptyPath
		}
		total += len(f.Content)
	}
	if total > MaxInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, total, MaxInputBytes)
	}
	return nil
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
