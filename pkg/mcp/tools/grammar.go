package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/services"
)

// GrammarToolDeps contains dependencies for the grammar tool.
type GrammarToolDeps struct {
	Grammar services.GrammarService
	Logger  *zap.Logger
}

// RegisterGrammarTool adds the correct_grammar tool to the MCP server.
func RegisterGrammarTool(s *server.MCPServer, deps *GrammarToolDeps) {
	tool := mcp.NewTool(
		"correct_grammar",
		mcp.WithDescription(
			"Correct grammar, spelling and punctuation in French text. "+
				"Returns the corrected text together with every correction applied: "+
				"the original span, its replacement, and the rule message explaining the fix. "+
				"Example: correct_grammar(text='Les étudiant sont la') fixes both the "+
				"missing plural and the accent on 'là'.",
		),
		mcp.WithString(
			"text",
			mcp.Required(),
			mcp.Description("French text to correct"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return NewErrorResult("invalid_parameters", "text parameter cannot be empty"), nil
		}

		result, err := deps.Grammar.Correct(ctx, text)
		if err != nil {
			if toolResult, ok := resultFromServiceError(err); ok {
				return toolResult, nil
			}
			return nil, fmt.Errorf("failed to correct text: %w", err)
		}

		return jsonResult(result)
	})
}
