package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/services"
)

// ReformulationToolDeps contains dependencies for the reformulation tool.
type ReformulationToolDeps struct {
	Reformulation services.ReformulationService
	Logger        *zap.Logger
}

// RegisterReformulationTool adds the reformulate_text tool to the MCP server.
func RegisterReformulationTool(s *server.MCPServer, deps *ReformulationToolDeps) {
	tool := mcp.NewTool(
		"reformulate_text",
		mcp.WithDescription(
			"Rewrite French text in a target register while preserving its meaning. "+
				"Styles: academic (scholarly register, default), formal (administrative), "+
				"simple (plain language), paraphrase (same register, different wording), "+
				"simplification (shorter sentences, common words).",
		),
		mcp.WithString(
			"text",
			mcp.Required(),
			mcp.Description("French text to rewrite"),
		),
		mcp.WithString(
			"style",
			mcp.Description("Target style name; defaults to academic"),
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

		style := ""
		if args, ok := req.Params.Arguments.(map[string]any); ok {
			if v, ok := args["style"].(string); ok {
				style = v
			}
		}
		if style != "" && !prompts.IsValidStyle(style) {
			return NewErrorResultWithDetails(
				"unknown_style",
				fmt.Sprintf("style %q is not available", style),
				map[string]any{"valid_styles": styleNames()},
			), nil
		}

		result, err := deps.Reformulation.Reformulate(ctx, auth.GetUserID(ctx), text, style)
		if err != nil {
			if toolResult, ok := resultFromServiceError(err); ok {
				return toolResult, nil
			}
			return nil, fmt.Errorf("failed to reformulate text: %w", err)
		}

		return jsonResult(result)
	})
}

func styleNames() []string {
	styles := prompts.Styles()
	names := make([]string, 0, len(styles))
	for _, s := range styles {
		names = append(names, s.Name)
	}
	return names
}
