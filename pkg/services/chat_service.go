package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/french"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/repositories"
	"github.com/plumelab/plume-engine/pkg/retry"
)

const (
	// chatHistoryWindow bounds how many prior turns the general pipeline
	// hands to the model.
	chatHistoryWindow = 10
	// streamChunkRunes is the target frame size when a reply is streamed.
	streamChunkRunes = 160
)

// ChatRequest is one inbound conversation turn. ModuleType is optional;
// blank requests are classified from the message text. Context and Style
// only apply to qa and reformulation turns respectively.
type ChatRequest struct {
	SessionID  int64
	UserID     int64
	Content    string
	ModuleType string
	Context    string
	Style      string
}

// ChatResult carries both persisted turns of one exchange. The assistant
// message's metadata holds the module payload (corrections, sources, style).
type ChatResult struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
}

// ImplicitRecorder captures automatic quality signals from pipeline runs.
// Implemented by the feedback service; nil disables the signals.
type ImplicitRecorder interface {
	RecordImplicit(ctx context.Context, userID int64, task string, success bool)
}

// ChatService routes conversation turns to the text engines and persists
// the exchange.
type ChatService interface {
	// SendMessage appends the user turn, runs the module pipeline and
	// appends the assistant reply. The user turn is persisted even when
	// the pipeline fails, so transcripts keep arrival order.
	SendMessage(ctx context.Context, req *ChatRequest) (*ChatResult, error)
}

// pipelineRequest is the normalized input every pipeline sees. history is
// only populated for general turns.
type pipelineRequest struct {
	userID          int64
	message         string
	explicitContext string
	style           string
	history         []prompts.Exchange
}

// pipelineResult is a pipeline's reply before persistence. success feeds
// the implicit feedback signal; degraded replies report false.
type pipelineResult struct {
	content  string
	metadata models.JSONBMap
	success  bool
}

type pipelineFunc func(ctx context.Context, req *pipelineRequest) (*pipelineResult, error)

type chatService struct {
	sessions      repositories.SessionRepository
	messages      repositories.MessageRepository
	grammar       GrammarService
	qa            QAService
	reformulation ReformulationService
	chat          llm.ChatClient
	params        ParamsAdapter
	feedback      ImplicitRecorder
	limits        config.LimitsConfig
	logger        *zap.Logger

	pipelines map[string]pipelineFunc
}

// NewChatService creates the chat dispatcher. params and feedback may be
// nil; the general pipeline then runs with default decoding parameters and
// no implicit signals are recorded.
func NewChatService(
	sessions repositories.SessionRepository,
	messages repositories.MessageRepository,
	grammar GrammarService,
	qa QAService,
	reformulation ReformulationService,
	chat llm.ChatClient,
	params ParamsAdapter,
	feedback ImplicitRecorder,
	limits config.LimitsConfig,
	logger *zap.Logger,
) ChatService {
	s := &chatService{
		sessions:      sessions,
		messages:      messages,
		grammar:       grammar,
		qa:            qa,
		reformulation: reformulation,
		chat:          chat,
		params:        params,
		feedback:      feedback,
		limits:        limits,
		logger:        logger,
	}
	s.pipelines = map[string]pipelineFunc{
		models.ModuleGrammar:       s.grammarPipeline,
		models.ModuleQA:            s.qaPipeline,
		models.ModuleReformulation: s.reformulationPipeline,
		models.ModuleGeneral:       s.generalPipeline,
	}
	return s
}

func (s *chatService) SendMessage(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if isBlank(req.Content) {
		return nil, apperrors.Validation("message is required")
	}
	if utf8.RuneCountInString(req.Content) > s.limits.MaxMessageChars {
		return nil, apperrors.Validation(fmt.Sprintf("message exceeds the maximum of %d characters", s.limits.MaxMessageChars))
	}

	moduleType := req.ModuleType
	if moduleType == "" {
		moduleType = classifyMessage(req.Content)
	} else if !models.IsValidModuleType(moduleType) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown module type %q", moduleType))
	}

	if _, err := s.sessions.GetByID(ctx, req.SessionID, req.UserID); err != nil {
		return nil, err
	}

	// History is read before the new turn is persisted so the model sees
	// only completed exchanges.
	var history []prompts.Exchange
	if moduleType == models.ModuleGeneral {
		h, err := s.recentHistory(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		history = h
	}

	userMessage := &models.Message{
		SessionID:  req.SessionID,
		Role:       models.RoleUser,
		Content:    req.Content,
		ModuleType: moduleType,
	}
	if err := s.messages.Create(ctx, userMessage); err != nil {
		return nil, err
	}

	result, err := s.pipelines[moduleType](ctx, &pipelineRequest{
		userID:          req.UserID,
		message:         req.Content,
		explicitContext: req.Context,
		style:           req.Style,
		history:         history,
	})
	if err != nil {
		return nil, err
	}

	assistantMessage := &models.Message{
		SessionID:  req.SessionID,
		Role:       models.RoleAssistant,
		Content:    result.content,
		ModuleType: moduleType,
		Metadata:   result.metadata,
	}
	if err := s.messages.Create(ctx, assistantMessage); err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(ctx, req.SessionID); err != nil {
		s.logger.Warn("failed to touch session",
			zap.Int64("session_id", req.SessionID),
			zap.Error(err))
	}

	if s.feedback != nil {
		s.feedback.RecordImplicit(ctx, req.UserID, moduleType, result.success)
	}

	s.logger.Info("chat turn completed",
		zap.Int64("session_id", req.SessionID),
		zap.Int64("user_id", req.UserID),
		zap.String("module_type", moduleType),
		zap.Bool("success", result.success))

	return &ChatResult{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}, nil
}

func (s *chatService) recentHistory(ctx context.Context, sessionID int64) ([]prompts.Exchange, error) {
	recent, err := s.messages.ListRecent(ctx, sessionID, chatHistoryWindow)
	if err != nil {
		return nil, err
	}
	history := make([]prompts.Exchange, 0, len(recent))
	for _, m := range recent {
		history = append(history, prompts.Exchange{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (s *chatService) grammarPipeline(ctx context.Context, req *pipelineRequest) (*pipelineResult, error) {
	res, err := s.grammar.Correct(ctx, req.message)
	if err != nil {
		return nil, err
	}
	return &pipelineResult{
		content: prompts.GrammarChatReply(res.CorrectedText, len(res.Corrections)),
		metadata: models.JSONBMap{
			"corrected_text": res.CorrectedText,
			"corrections":    res.Corrections,
		},
		success: true,
	}, nil
}

func (s *chatService) qaPipeline(ctx context.Context, req *pipelineRequest) (*pipelineResult, error) {
	res, err := s.qa.Answer(ctx, req.userID, req.message, req.explicitContext)
	if err != nil {
		return nil, err
	}
	return &pipelineResult{
		content: res.Answer,
		metadata: models.JSONBMap{
			"sources":    res.Sources,
			"confidence": res.Confidence,
		},
		success: res.Confidence > 0,
	}, nil
}

func (s *chatService) reformulationPipeline(ctx context.Context, req *pipelineRequest) (*pipelineResult, error) {
	res, err := s.reformulation.Reformulate(ctx, req.userID, req.message, req.style)
	if err != nil {
		return nil, err
	}
	return &pipelineResult{
		content: res.ReformulatedText,
		metadata: models.JSONBMap{
			"style":   res.Style,
			"changes": res.Changes,
		},
		success: res.Changes["error"] == "",
	}, nil
}

func (s *chatService) generalPipeline(ctx context.Context, req *pipelineRequest) (*pipelineResult, error) {
	params := DefaultGenerateParams()
	if s.params != nil && req.userID != 0 {
		params = s.params.AdaptedParams(ctx, req.userID, models.ModuleGeneral)
	}

	user := prompts.BuildGeneralPrompt(req.history, req.message)
	callCtx, done := llm.WithCallDeadline(ctx, s.limits, s.logger, "general_chat")
	defer done()

	reply, err := retry.DoWithResult(callCtx, retry.ModelConfig(), func() (string, error) {
		return s.chat.Complete(callCtx, prompts.GeneralSystemPrompt, user, params)
	})
	if err != nil {
		s.logger.Warn("chat model unavailable, sending fallback reply", zap.Error(err))
		return &pipelineResult{content: prompts.GeneralUnavailable, success: false}, nil
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return &pipelineResult{content: prompts.GeneralUnavailable, success: false}, nil
	}
	return &pipelineResult{content: reply, success: true}, nil
}

// Message classification keyword sets. Tokens come out of french.Tokenize
// lowercased with diacritics intact.
var (
	greetingWords = map[string]bool{
		"bonjour": true, "bonsoir": true, "salut": true, "coucou": true,
		"merci": true, "bonne": true,
	}
	reformulationWords = map[string]bool{
		"reformule": true, "reformuler": true, "réécris": true, "réécrire": true,
		"reecris": true, "paraphrase": true, "paraphraser": true, "simplifie": true,
		"simplifier": true,
	}
	grammarWords = map[string]bool{
		"corrige": true, "corriger": true, "correction": true, "orthographe": true,
		"grammaire": true, "faute": true, "fautes": true, "relis": true,
		"relire": true,
	}
	interrogativeLeads = map[string]bool{
		"qui": true, "que": true, "quoi": true, "qu": true,
		"quel": true, "quelle": true, "quels": true, "quelles": true,
		"pourquoi": true, "comment": true, "combien": true,
		"où": true, "quand": true, "est": true,
	}
)

// greetingMaxTokens is how short a message must be to count as a bare
// greeting; longer messages carry intent beyond the salutation.
const greetingMaxTokens = 5

// classifyMessage infers the module for a turn that did not name one.
// Keyword routing runs before the question check so "corrige ma phrase ?"
// goes to grammar, not qa.
func classifyMessage(content string) string {
	tokens := french.Tokenize(content)
	if len(tokens) == 0 {
		return models.ModuleGeneral
	}

	if len(tokens) <= greetingMaxTokens && greetingWords[tokens[0]] {
		return models.ModuleGeneral
	}

	for _, tok := range tokens {
		if reformulationWords[tok] {
			return models.ModuleReformulation
		}
	}
	for _, tok := range tokens {
		if grammarWords[tok] {
			return models.ModuleGrammar
		}
	}

	if strings.Contains(content, "?") || interrogativeLeads[tokens[0]] {
		return models.ModuleQA
	}

	return models.ModuleGeneral
}

// ChunkContent splits a reply into streaming frames of roughly
// streamChunkRunes runes, cut at word boundaries. Concatenating the frames
// reproduces the reply byte for byte.
func ChunkContent(content string) []string {
	if content == "" {
		return nil
	}

	var chunks []string
	rest := content
	for utf8.RuneCountInString(rest) > streamChunkRunes {
		cut := byteOffsetOfRune(rest, streamChunkRunes)
		if i := strings.LastIndexAny(rest[:cut], " \n"); i > 0 {
			cut = i + 1
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	return append(chunks, rest)
}

// byteOffsetOfRune returns the byte offset just after the first n runes.
func byteOffsetOfRune(s string, n int) int {
	seen := 0
	for i := range s {
		if seen == n {
			return i
		}
		seen++
	}
	return len(s)
}

// Ensure chatService implements ChatService at compile time.
var _ ChatService = (*chatService)(nil)
