package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/langtool"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/prompts"
)

// stubQA implements QAService for testing the dispatcher.
type stubQA struct {
	calls       int
	lastUserID  int64
	lastContext string
	result      *QAResult
	err         error
}

func (s *stubQA) Answer(ctx context.Context, userID int64, question, explicitContext string) (*QAResult, error) {
	s.calls++
	s.lastUserID = userID
	s.lastContext = explicitContext
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubReformulation implements ReformulationService for testing.
type stubReformulation struct {
	calls     int
	lastStyle string
	result    *ReformulationResult
	err       error
}

func (s *stubReformulation) Reformulate(ctx context.Context, userID int64, text, style string) (*ReformulationResult, error) {
	s.calls++
	s.lastStyle = style
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// stubImplicitRecorder implements ImplicitRecorder for testing.
type stubImplicitRecorder struct {
	calls    int
	lastTask string
	lastOK   bool
}

func (s *stubImplicitRecorder) RecordImplicit(ctx context.Context, userID int64, task string, success bool) {
	s.calls++
	s.lastTask = task
	s.lastOK = success
}

type chatFixture struct {
	svc      ChatService
	session  *models.ChatSession
	sessions *mockSessionRepo
	messages *mockMessageRepo
	grammar  *stubGrammar
	qa       *stubQA
	reform   *stubReformulation
	chat     *mockChatClient
	params   *mockParamsAdapter
	recorder *stubImplicitRecorder
}

// newChatFixture wires the dispatcher over stub engines with one session
// owned by user 7.
func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		sessions: &mockSessionRepo{},
		messages: &mockMessageRepo{},
		grammar:  &stubGrammar{corrected: "Texte corrigé."},
		qa: &stubQA{result: &QAResult{
			Answer:     "D'après les éléments consultés : la réponse.",
			Confidence: 0.7,
			Sources:    []string{"notes.pdf"},
		}},
		reform: &stubReformulation{result: &ReformulationResult{
			OriginalText:     "avant",
			ReformulatedText: "Après reformulation.",
			Style:            prompts.StyleAcademic,
			Changes:          map[string]string{"style": prompts.StyleAcademic},
		}},
		chat:     &mockChatClient{response: "Bien sûr, je peux vous aider."},
		params:   &mockParamsAdapter{params: DefaultGenerateParams()},
		recorder: &stubImplicitRecorder{},
	}
	f.svc = NewChatService(f.sessions, f.messages, f.grammar, f.qa, f.reform,
		f.chat, f.params, f.recorder, testLimits(), zap.NewNop())

	f.session = &models.ChatSession{UserID: 7, Title: "Relecture"}
	require.NoError(t, f.sessions.Create(context.Background(), f.session))
	return f
}

func (f *chatFixture) send(t *testing.T, req *ChatRequest) *ChatResult {
	t.Helper()
	if req.SessionID == 0 {
		req.SessionID = f.session.ID
	}
	if req.UserID == 0 {
		req.UserID = 7
	}
	result, err := f.svc.SendMessage(context.Background(), req)
	require.NoError(t, err)
	return result
}

func TestChatService_SendMessage_GrammarTurn(t *testing.T) {
	f := newChatFixture(t)
	f.grammar.corrected = "Les étudiants travaillent."
	f.grammar.corrections = []langtool.Correction{{
		OriginalSpan: "travaille",
		Replacement:  "travaillent",
		Offset:       14,
		Length:       9,
	}}

	result := f.send(t, &ChatRequest{
		Content:    "Les étudiants travaille.",
		ModuleType: models.ModuleGrammar,
	})

	assert.Equal(t, models.RoleUser, result.UserMessage.Role)
	assert.Equal(t, models.ModuleGrammar, result.UserMessage.ModuleType)
	assert.Equal(t, "Les étudiants travaille.", result.UserMessage.Content)

	assistant := result.AssistantMessage
	assert.Equal(t, models.RoleAssistant, assistant.Role)
	assert.Equal(t, "Voici votre texte corrigé (1 correction) :\n\nLes étudiants travaillent.", assistant.Content)
	assert.Equal(t, "Les étudiants travaillent.", assistant.Metadata["corrected_text"])

	require.Len(t, f.messages.messages, 2)
	assert.Equal(t, models.RoleUser, f.messages.messages[0].Role)
	assert.Equal(t, models.RoleAssistant, f.messages.messages[1].Role)

	assert.Equal(t, 1, f.sessions.touchCalls)
	assert.Equal(t, 1, f.recorder.calls)
	assert.Equal(t, models.ModuleGrammar, f.recorder.lastTask)
	assert.True(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_GrammarTurnNoFaults(t *testing.T) {
	f := newChatFixture(t)
	f.grammar.corrected = "Une phrase correcte."
	f.grammar.corrections = nil

	result := f.send(t, &ChatRequest{
		Content:    "Une phrase correcte.",
		ModuleType: models.ModuleGrammar,
	})

	assert.Equal(t, prompts.GrammarNoCorrections, result.AssistantMessage.Content)
}

func TestChatService_SendMessage_QATurnCarriesSources(t *testing.T) {
	f := newChatFixture(t)

	result := f.send(t, &ChatRequest{
		Content:    "Quelle est la structure des mitochondries ?",
		ModuleType: models.ModuleQA,
		Context:    "Les mitochondries ont une double membrane.",
	})

	assert.Equal(t, f.qa.result.Answer, result.AssistantMessage.Content)
	assert.Equal(t, []string{"notes.pdf"}, result.AssistantMessage.Metadata["sources"])
	assert.Equal(t, 0.7, result.AssistantMessage.Metadata["confidence"])
	assert.Equal(t, "Les mitochondries ont une double membrane.", f.qa.lastContext)
	assert.Equal(t, int64(7), f.qa.lastUserID)
	assert.True(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_QADisclaimerSignalsNegative(t *testing.T) {
	f := newChatFixture(t)
	f.qa.result = &QAResult{Answer: prompts.NoContextDisclaimer, Confidence: 0, Sources: []string{}}

	f.send(t, &ChatRequest{
		Content:    "Quelle est la capitale de l'Australie ?",
		ModuleType: models.ModuleQA,
	})

	assert.Equal(t, 1, f.recorder.calls)
	assert.False(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_ReformulationForwardsStyle(t *testing.T) {
	f := newChatFixture(t)

	result := f.send(t, &ChatRequest{
		Content:    "On a vu que ça marchait bien.",
		ModuleType: models.ModuleReformulation,
		Style:      prompts.StyleSimple,
	})

	assert.Equal(t, prompts.StyleSimple, f.reform.lastStyle)
	assert.Equal(t, "Après reformulation.", result.AssistantMessage.Content)
	assert.Equal(t, prompts.StyleAcademic, result.AssistantMessage.Metadata["style"])
	assert.True(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_ReformulationDegradedSignalsNegative(t *testing.T) {
	f := newChatFixture(t)
	f.reform.result = &ReformulationResult{
		OriginalText:     "avant",
		ReformulatedText: "avant",
		Style:            prompts.StyleAcademic,
		Changes: map[string]string{
			"style": prompts.StyleAcademic,
			"error": prompts.ReformulationUnavailable,
		},
	}

	f.send(t, &ChatRequest{
		Content:    "Reformule cette phrase.",
		ModuleType: models.ModuleReformulation,
	})

	assert.False(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_GeneralUsesBoundedHistory(t *testing.T) {
	f := newChatFixture(t)
	for i := 1; i <= 12; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleAssistant
		}
		seedMessage(f.messages, f.session.ID, role, models.ModuleGeneral, fmt.Sprintf("Tour numéro %02d.", i))
	}

	result := f.send(t, &ChatRequest{
		Content:    "Peux-tu me donner un plan de travail pour la semaine",
		ModuleType: models.ModuleGeneral,
	})

	assert.Equal(t, "Bien sûr, je peux vous aider.", result.AssistantMessage.Content)
	assert.Equal(t, prompts.GeneralSystemPrompt, f.chat.lastSystem)

	assert.Contains(t, f.chat.lastUser, "Conversation récente :")
	assert.Contains(t, f.chat.lastUser, "Tour numéro 03.")
	assert.Contains(t, f.chat.lastUser, "Tour numéro 12.")
	assert.NotContains(t, f.chat.lastUser, "Tour numéro 01.", "history is bounded to the last 10 turns")
	assert.NotContains(t, f.chat.lastUser, "Tour numéro 02.")
	assert.Contains(t, f.chat.lastUser, "Étudiant : Tour numéro 03.")
	assert.Contains(t, f.chat.lastUser, "Plume : Tour numéro 04.")

	assert.Equal(t, 1, strings.Count(f.chat.lastUser, "Peux-tu me donner un plan de travail"),
		"the new message appears only under Nouveau message")
	assert.True(t, f.recorder.lastOK)
}

func TestChatService_SendMessage_GeneralUsesAdaptedParams(t *testing.T) {
	f := newChatFixture(t)
	f.params.params = DefaultGenerateParams()
	f.params.params.MaxTokens = 320

	f.send(t, &ChatRequest{
		Content:    "Donne-moi une méthode de relecture.",
		ModuleType: models.ModuleGeneral,
	})

	assert.Equal(t, 1, f.params.calls)
	assert.Equal(t, models.ModuleGeneral, f.params.lastTask)
	assert.Equal(t, 320, f.chat.lastParams.MaxTokens)
}

func TestChatService_SendMessage_GeneralModelDownFallsBack(t *testing.T) {
	f := newChatFixture(t)
	f.chat.err = errors.New("connection refused")

	result := f.send(t, &ChatRequest{
		Content:    "Donne-moi une méthode de relecture.",
		ModuleType: models.ModuleGeneral,
	})

	assert.Equal(t, 3, f.chat.calls, "model failures retry twice before degrading")
	assert.Equal(t, prompts.GeneralUnavailable, result.AssistantMessage.Content)
	assert.False(t, f.recorder.lastOK)
	require.Len(t, f.messages.messages, 2, "the fallback reply is still persisted")
}

func TestChatService_SendMessage_ClassifiesAndRoutes(t *testing.T) {
	f := newChatFixture(t)

	result := f.send(t, &ChatRequest{Content: "Corrige l'orthographe de ce texte."})

	assert.Equal(t, models.ModuleGrammar, result.UserMessage.ModuleType)
	assert.Equal(t, models.ModuleGrammar, result.AssistantMessage.ModuleType)
	assert.Equal(t, 1, f.grammar.calls)
	assert.Equal(t, 0, f.qa.calls)
}

func TestChatService_SendMessage_BlankMessage(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: f.session.ID, UserID: 7, Content: "   ",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.messages.messages)
}

func TestChatService_SendMessage_MessageTooLong(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: f.session.ID, UserID: 7, Content: strings.Repeat("é", 8001),
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestChatService_SendMessage_UnknownModule(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: f.session.ID, UserID: 7, Content: "Bonjour", ModuleType: "poetry",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestChatService_SendMessage_SessionNotFound(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: 42, UserID: 7, Content: "Bonjour",
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.messages.messages)
}

func TestChatService_SendMessage_ForeignSessionNotFound(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: f.session.ID, UserID: 8, Content: "Bonjour",
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChatService_SendMessage_PipelineErrorKeepsUserMessage(t *testing.T) {
	f := newChatFixture(t)
	f.grammar.err = apperrors.Validation("text exceeds the maximum of 10000 characters")

	_, err := f.svc.SendMessage(context.Background(), &ChatRequest{
		SessionID: f.session.ID, UserID: 7,
		Content: "Corrige ce texte.", ModuleType: models.ModuleGrammar,
	})

	require.Error(t, err)
	require.Len(t, f.messages.messages, 1, "the user turn stays in the transcript")
	assert.Equal(t, models.RoleUser, f.messages.messages[0].Role)
	assert.Equal(t, 0, f.sessions.touchCalls)
	assert.Equal(t, 0, f.recorder.calls)
}

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"Bonjour !", models.ModuleGeneral},
		{"Salut, ça va ?", models.ModuleGeneral},
		{"Merci beaucoup", models.ModuleGeneral},
		{"Bonjour, peux-tu corriger mon introduction ?", models.ModuleGrammar},
		{"Corrige l'orthographe de ce texte", models.ModuleGrammar},
		{"Mon texte contient-il des fautes ?", models.ModuleGrammar},
		{"Reformule cette phrase dans un style académique", models.ModuleReformulation},
		{"Peux-tu réécrire ce paragraphe ?", models.ModuleReformulation},
		{"Simplifie cette explication", models.ModuleReformulation},
		{"Quelle est la structure des mitochondries ?", models.ModuleQA},
		{"Pourquoi les plantes sont-elles vertes", models.ModuleQA},
		{"Qu'est-ce que la photosynthèse", models.ModuleQA},
		{"La photosynthèse produit-elle de l'oxygène ?", models.ModuleQA},
		{"Je travaille sur mon mémoire de biologie.", models.ModuleGeneral},
		{"", models.ModuleGeneral},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyMessage(tc.message), "message: %q", tc.message)
	}
}

func TestChunkContent_ShortContentSingleFrame(t *testing.T) {
	chunks := ChunkContent("Une réponse courte.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "Une réponse courte.", chunks[0])
}

func TestChunkContent_Empty(t *testing.T) {
	assert.Nil(t, ChunkContent(""))
}

func TestChunkContent_CutsAtWordBoundaries(t *testing.T) {
	content := strings.TrimSpace(strings.Repeat("mot ", 100))

	chunks := ChunkContent(content)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, content, strings.Join(chunks, ""), "frames reassemble to the full reply")
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 160, "chunk %d", i)
		if i < len(chunks)-1 {
			assert.True(t, strings.HasSuffix(chunk, " "), "chunk %d ends on a word boundary", i)
		}
	}
}

func TestChunkContent_HardCutsUnbrokenRuns(t *testing.T) {
	content := strings.Repeat("é", 400)

	chunks := ChunkContent(content)

	require.Len(t, chunks, 3)
	assert.Equal(t, content, strings.Join(chunks, ""))
	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d cuts on a rune boundary", i)
	}
	assert.Equal(t, 160, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 160, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, 80, utf8.RuneCountInString(chunks[2]))
}
