package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kaiwa-app/kaiwa/internal/catalog"
	"github.com/kaiwa-app/kaiwa/internal/db"
	"github.com/kaiwa-app/kaiwa/internal/db/models"
	"github.com/kaiwa-app/kaiwa/internal/llm"
	"github.com/kaiwa-app/kaiwa/internal/store"
)

// stubProvider replays a scripted token sequence and records the history it
// was handed.
type stubProvider struct {
	tokens       []string
	inputTokens  int
	outputTokens int
	err          error

	gotModelID string
	gotHistory []llm.Message
}

func (p *stubProvider) Stream(_ context.Context, providerModelID string, history []llm.Message, onToken llm.TokenFunc) (*llm.StreamResult, error) {
	p.gotModelID = providerModelID
	p.gotHistory = history
	if p.err != nil {
		return nil, p.err
	}
	var b strings.Builder
	for _, tok := range p.tokens {
		if err := onToken(tok); err != nil {
			return nil, err
		}
		b.WriteString(tok)
	}
	return &llm.StreamResult{Content: b.String(), InputTokens: p.inputTokens, OutputTokens: p.outputTokens}, nil
}

func testService(t *testing.T, providers llm.Registry) (*Service, *gorm.DB, uint) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	user := models.User{AuthID: "auth-" + t.Name(), PlanID: db.PlanFree}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewService(database, providers, 0), database, user.ID
}

func TestCreateSessionDefaultTitle(t *testing.T) {
	svc, _, accountID := testService(t, nil)

	session, err := svc.CreateSession(context.Background(), accountID, 1, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Title != DefaultSessionTitle {
		t.Fatalf("expected default title, got %q", session.Title)
	}
	if session.Model.Provider != "gemini" {
		t.Fatalf("expected resolved model on the returned session: %+v", session.Model)
	}
}

func TestCreateSessionTitleBounds(t *testing.T) {
	svc, _, accountID := testService(t, nil)
	ctx := context.Background()

	empty := ""
	if _, err := svc.CreateSession(ctx, accountID, 1, &empty); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle for empty title, got %v", err)
	}

	tooLong := strings.Repeat("x", 256)
	if _, err := svc.CreateSession(ctx, accountID, 1, &tooLong); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle for 256 characters, got %v", err)
	}

	// 255 multi-byte runes are fine: the bound counts characters, not bytes.
	maxed := strings.Repeat("あ", 255)
	session, err := svc.CreateSession(ctx, accountID, 1, &maxed)
	if err != nil {
		t.Fatalf("255-rune title rejected: %v", err)
	}
	if session.Title != maxed {
		t.Fatal("title was altered on the way in")
	}
}

func TestCreateSessionModelGate(t *testing.T) {
	svc, database, accountID := testService(t, nil)
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, accountID, 999, nil); !errors.Is(err, catalog.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	// Model 2 is pro-only; the account is on the free plan.
	if _, err := svc.CreateSession(ctx, accountID, 2, nil); !errors.Is(err, catalog.ErrModelNotAllowed) {
		t.Fatalf("expected ErrModelNotAllowed, got %v", err)
	}

	var count int64
	if err := database.Model(&models.ChatSession{}).Count(&count).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected selections must create nothing, found %d sessions", count)
	}
}

func TestStreamMessageHappyPath(t *testing.T) {
	provider := &stubProvider{tokens: []string{"Hi ", "there"}, inputTokens: 11, outputTokens: 2}
	svc, _, accountID := testService(t, llm.Registry{"gemini": provider})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, accountID, 1, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	createdAt := session.UpdatedAt

	var streamed []string
	time.Sleep(5 * time.Millisecond)
	outcome, err := svc.StreamMessage(ctx, accountID, session.ID, "hello", func(token string) error {
		streamed = append(streamed, token)
		return nil
	})
	if err != nil {
		t.Fatalf("stream message: %v", err)
	}

	if len(streamed) != 2 || streamed[0] != "Hi " {
		t.Fatalf("unexpected token delivery: %v", streamed)
	}
	if outcome.InputTokens != 11 || outcome.OutputTokens != 2 {
		t.Fatalf("unexpected usage on outcome: %+v", outcome)
	}
	if provider.gotModelID != "gemini-2.0-flash" {
		t.Fatalf("expected the session's bound model id, got %q", provider.gotModelID)
	}
	if len(provider.gotHistory) != 1 || provider.gotHistory[0].Content != "hello" {
		t.Fatalf("first exchange should carry just the new turn: %+v", provider.gotHistory)
	}

	messages, err := svc.Messages(ctx, accountID, session.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant rows, got %d", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[0].Content != "hello" {
		t.Fatalf("unexpected user row: %+v", messages[0])
	}
	if messages[1].Role != models.RoleAssistant || messages[1].Content != "Hi there" {
		t.Fatalf("unexpected assistant row: %+v", messages[1])
	}
	if messages[1].ID != outcome.MessageID {
		t.Fatalf("outcome id %d does not match the stored row %d", outcome.MessageID, messages[1].ID)
	}
	if messages[1].InputTokens == nil || *messages[1].InputTokens != 11 {
		t.Fatalf("assistant row lost its usage: %+v", messages[1])
	}

	sessions, err := svc.Sessions(ctx, accountID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if !sessions[0].UpdatedAt.After(createdAt) {
		t.Fatalf("expected updated_at to advance after a successful exchange")
	}
}

func TestStreamMessageSecondExchangeCarriesHistory(t *testing.T) {
	provider := &stubProvider{tokens: []string{"a1"}}
	svc, _, accountID := testService(t, llm.Registry{"gemini": provider})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, accountID, 1, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	noop := func(string) error { return nil }
	if _, err := svc.StreamMessage(ctx, accountID, session.ID, "q1", noop); err != nil {
		t.Fatalf("first exchange: %v", err)
	}

	provider.tokens = []string{"a2"}
	if _, err := svc.StreamMessage(ctx, accountID, session.ID, "q2", noop); err != nil {
		t.Fatalf("second exchange: %v", err)
	}

	want := []llm.Message{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}
	if len(provider.gotHistory) != len(want) {
		t.Fatalf("expected %d turns, got %+v", len(want), provider.gotHistory)
	}
	for i, turn := range want {
		if provider.gotHistory[i] != turn {
			t.Fatalf("turn %d mismatch: got %+v want %+v", i, provider.gotHistory[i], turn)
		}
	}

	messages, err := svc.Messages(ctx, accountID, session.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 4 {
		t.Fatalf("expected 4 rows after two exchanges, got %d", len(messages))
	}
	gotContents := []string{messages[0].Content, messages[1].Content, messages[2].Content, messages[3].Content}
	if gotContents[0] != "q1" || gotContents[1] != "a1" || gotContents[2] != "q2" || gotContents[3] != "a2" {
		t.Fatalf("unexpected conversation order: %v", gotContents)
	}
}

func TestStreamMessageProviderFailureKeepsUserTurn(t *testing.T) {
	streamErr := errors.New(`{"error":{"message":"Rate limit exceeded"}}`)
	provider := &stubProvider{err: streamErr}
	svc, _, accountID := testService(t, llm.Registry{"gemini": provider})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, accountID, 1, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	createdAt := session.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	_, err = svc.StreamMessage(ctx, accountID, session.ID, "hello", func(string) error { return nil })
	if !errors.Is(err, streamErr) {
		t.Fatalf("expected the provider error, got %v", err)
	}

	messages, err := svc.Messages(ctx, accountID, session.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != models.RoleUser {
		t.Fatalf("expected only the committed user turn, got %+v", messages)
	}

	// The session's recency must not advance on a failed exchange. The sleep
	// above guarantees a touch would have moved updated_at by at least 5ms, so
	// a sub-millisecond storage round-trip difference does not false-positive.
	got, err := store.GetSessionWithModel(svc.db, accountID, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UpdatedAt.Sub(createdAt) > 2*time.Millisecond {
		t.Fatalf("updated_at moved on a failed exchange: %v -> %v", createdAt, got.UpdatedAt)
	}
}

func TestStreamMessageUnknownProviderTag(t *testing.T) {
	svc, database, accountID := testService(t, llm.Registry{"gemini": &stubProvider{}})
	ctx := context.Background()

	// A catalog row pointing at a provider tag with no registered adapter.
	mystery := models.Model{ID: 99, Name: "Mystery", ModelID: "mystery-1", Provider: "mystery"}
	if err := database.Create(&mystery).Error; err != nil {
		t.Fatalf("create model: %v", err)
	}
	if err := database.Create(&models.PlanModel{PlanID: db.PlanFree, ModelID: 99}).Error; err != nil {
		t.Fatalf("create grant: %v", err)
	}

	session, err := svc.CreateSession(ctx, accountID, 99, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, err = svc.StreamMessage(ctx, accountID, session.ID, "hello", func(string) error { return nil })
	if !errors.Is(err, llm.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	// Adapter resolution happens after the user turn commits, so the turn
	// survives just like any other provider-side failure.
	messages, err := svc.Messages(ctx, accountID, session.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != models.RoleUser {
		t.Fatalf("expected only the committed user turn, got %+v", messages)
	}
}

func TestStreamMessageSessionOwnership(t *testing.T) {
	svc, database, accountID := testService(t, llm.Registry{"gemini": &stubProvider{}})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, accountID, 1, nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	intruder := models.User{AuthID: "intruder", PlanID: db.PlanFree}
	if err := database.Create(&intruder).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err = svc.StreamMessage(ctx, intruder.ID, session.ID, "hello", func(string) error { return nil })
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("foreign session must look absent, got %v", err)
	}
}

func TestValidateContent(t *testing.T) {
	if err := ValidateContent("hello"); err != nil {
		t.Fatalf("valid content rejected: %v", err)
	}
	if err := ValidateContent(""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if err := ValidateContent("   \n\t "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent for whitespace, got %v", err)
	}
	if err := ValidateContent(strings.Repeat("x", maxContentBytes+1)); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
	if err := ValidateContent(strings.Repeat("x", maxContentBytes)); err != nil {
		t.Fatalf("content at the limit rejected: %v", err)
	}
}
