package mcp

import (
	"context"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/logging"
)

// AuditLogger records MCP tool calls with their outcome and duration. Tool
// arguments carry user prose, so string values are scrubbed before logging.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger that records MCP events.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	start, tracked := a.loadAndDeleteStart(id)

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Int64("user_id", auth.GetUserID(ctx)),
		zap.String("correlation_id", logging.CorrelationID(ctx)),
		zap.Any("arguments", scrubArguments(req.Params.Arguments)),
		zap.Bool("is_error", result != nil && result.IsError),
	}
	if tracked {
		fields = append(fields, zap.Duration("duration", time.Since(start)))
	}

	a.logger.Info("MCP tool call", fields...)
}

func (a *AuditLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, _ any, err error) {
	a.startTimes.Delete(id)
	a.logger.Warn("MCP call failed",
		zap.String("method", string(method)),
		zap.Int64("user_id", auth.GetUserID(ctx)),
		zap.String("correlation_id", logging.CorrelationID(ctx)),
		zap.Error(err),
	)
}

func (a *AuditLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	value, ok := a.startTimes.LoadAndDelete(id)
	if !ok {
		return time.Time{}, false
	}
	start, ok := value.(time.Time)
	return start, ok
}

// scrubArguments redacts credential-looking keys and truncates user prose so
// full texts never land in the audit trail.
func scrubArguments(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok {
		return nil
	}

	out := make(map[string]any, len(params))
	for k, v := range params {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "password") || strings.Contains(lower, "secret") ||
			strings.Contains(lower, "token") || strings.Contains(lower, "key") {
			out[k] = logging.RedactedText
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = logging.SanitizeText(s)
		} else {
			out[k] = v
		}
	}
	return out
}
