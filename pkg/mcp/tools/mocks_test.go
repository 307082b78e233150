package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

type mockGrammarService struct {
	result   *services.GrammarResult
	err      error
	lastText string
}

func (m *mockGrammarService) Correct(ctx context.Context, text string) (*services.GrammarResult, error) {
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockQAService struct {
	result       *services.QAResult
	err          error
	lastUserID   int64
	lastQuestion string
	lastContext  string
}

func (m *mockQAService) Answer(ctx context.Context, userID int64, question, explicitContext string) (*services.QAResult, error) {
	m.lastUserID = userID
	m.lastQuestion = question
	m.lastContext = explicitContext
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockReformulationService struct {
	result     *services.ReformulationResult
	err        error
	lastUserID int64
	lastText   string
	lastStyle  string
}

func (m *mockReformulationService) Reformulate(ctx context.Context, userID int64, text, style string) (*services.ReformulationResult, error) {
	m.lastUserID = userID
	m.lastText = text
	m.lastStyle = style
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newToolServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}

func keyContext(userID, keyID int64) context.Context {
	return context.WithValue(context.Background(), auth.IdentityKey, &auth.Identity{
		UserID:   userID,
		Method:   auth.MethodAPIKey,
		APIKeyID: keyID,
	})
}

// callTool runs a tools/call through the server's JSON-RPC entry point and
// returns the first text content plus the isError flag.
func callTool(t *testing.T, s *server.MCPServer, ctx context.Context, name string, args map[string]any) (string, bool) {
	t.Helper()

	request := map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      1,
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}
	body, err := json.Marshal(request)
	require.NoError(t, err)

	raw := s.HandleMessage(ctx, body)
	resultBytes, err := json.Marshal(raw)
	require.NoError(t, err)

	var response struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.NotEmpty(t, response.Result.Content, "tool call returned no content: %s", resultBytes)

	return response.Result.Content[0].Text, response.Result.IsError
}

// listToolNames returns the names advertised by tools/list.
func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()

	raw := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(raw)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	names := make([]string, 0, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}
