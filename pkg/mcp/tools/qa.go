package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// QAToolDeps contains dependencies for the question answering tool.
type QAToolDeps struct {
	QA     services.QAService
	Logger *zap.Logger
}

// RegisterQATool adds the answer_question tool to the MCP server.
func RegisterQATool(s *server.MCPServer, deps *QAToolDeps) {
	tool := mcp.NewTool(
		"answer_question",
		mcp.WithDescription(
			"Answer a question about French academic writing. "+
				"Pass context to answer over a specific passage; without it, the answer "+
				"is grounded in the caller's indexed documents and the built-in "+
				"methodology knowledge base. Returns the answer, a confidence score "+
				"and the source excerpts it was extracted from.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("Question to answer, in French"),
		),
		mcp.WithString(
			"context",
			mcp.Description("Optional passage to answer over instead of retrieved documents"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(question) == "" {
			return NewErrorResult("invalid_parameters", "question parameter cannot be empty"), nil
		}

		explicitContext := ""
		if args, ok := req.Params.Arguments.(map[string]any); ok {
			if v, ok := args["context"].(string); ok {
				explicitContext = v
			}
		}

		result, err := deps.QA.Answer(ctx, auth.GetUserID(ctx), question, explicitContext)
		if err != nil {
			if toolResult, ok := resultFromServiceError(err); ok {
				return toolResult, nil
			}
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		return jsonResult(result)
	})
}
