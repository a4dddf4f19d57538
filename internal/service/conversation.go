package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/provider"
)

const (
	maxFarewellTokens  = 3
	tokenPunctuation   = "?,.:;!¿¡\"'()"
	defaultLLMTimeout  = 120 * time.Second
	defaultDisplayName = "Usuário"
)

// ChunkRetriever finds context for a question
type ChunkRetriever interface {
	Retrieve(ctx context.Context, question string, topN int) ([]domain.RetrievedChunk, error)
}

// Conversation holds per-user sessions and answers messages
type Conversation struct {
	retriever  ChunkRetriever
	generator  provider.Generator
	cfg        config.ChatConfig
	topN       int
	llmTimeout time.Duration
	greetings  [][]string
	farewells  [][]string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.ConversationSession
	locks    map[string]*userLock
}

// userLock serialises one user's turns. refs counts holders and waiters so
// the entry can be dropped once nobody needs it.
type userLock struct {
	sync.Mutex
	refs int
}

// NewConversation creates a conversation service
func NewConversation(
	retriever ChunkRetriever,
	generator provider.Generator,
	cfg config.ChatConfig,
	topN int,
	llmTimeout time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}

	greetings := cfg.Greetings
	if cfg.BotName != "" {
		greetings = append(append([]string(nil), greetings...), strings.ToLower(cfg.BotName))
	}

	return &Conversation{
		retriever:  retriever,
		generator:  generator,
		cfg:        cfg,
		topN:       topN,
		llmTimeout: llmTimeout,
		greetings:  vocabulary(greetings),
		farewells:  vocabulary(cfg.Farewells),
		logger:     logger.Named("conversation"),
		metrics:    m,
		now:        time.Now,
		sessions:   make(map[string]*domain.ConversationSession),
		locks:      make(map[string]*userLock),
	}
}

// Handle routes a message to the greeting, farewell or question path.
func (c *Conversation) Handle(ctx context.Context, msg domain.Message) (domain.Reply, error) {
	if strings.TrimSpace(msg.UserID) == "" {
		return domain.Reply{}, domain.ErrInvalidRequest
	}
	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return domain.Reply{}, domain.ErrEmptyMessage
	}

	tokens := normalize(body)

	if containsAny(tokens, c.greetings) {
		c.metrics.Message(domain.ReplyGreeting)
		return domain.Reply{Kind: domain.ReplyGreeting, Text: c.greetingText(msg)}, nil
	}

	if len(tokens) <= maxFarewellTokens && containsAny(tokens, c.farewells) {
		c.Reset(msg.UserID)
		c.metrics.Message(domain.ReplyFarewell)
		return domain.Reply{Kind: domain.ReplyFarewell, Text: c.cfg.FarewellMessage}, nil
	}

	return c.answer(ctx, msg, body)
}

func (c *Conversation) answer(ctx context.Context, msg domain.Message, question string) (domain.Reply, error) {
	defer c.lockUser(msg.UserID)()

	history := c.ensureSession(msg)
	log := c.logger.With(zap.String("user_id", msg.UserID))

	chunks, err := c.retriever.Retrieve(ctx, question, c.topN)
	if err != nil {
		log.Error("retrieval failed", zap.Error(err))
		return c.failed(msg.UserID, question, chunks), nil
	}

	prompt := BuildPrompt(PromptInput{
		SystemPrompt: c.cfg.SystemPrompt,
		BotName:      c.cfg.BotName,
		UserName:     msg.DisplayName,
		NoInfoMarker: c.cfg.NoInfoMarker,
		History:      history,
		Chunks:       chunks,
		Question:     question,
	})

	llmCtx, cancel := context.WithTimeout(ctx, c.llmTimeout)
	start := time.Now()
	answer, err := c.generator.Generate(llmCtx, prompt)
	cancel()
	c.metrics.LLMCall(start, err)
	if err != nil {
		log.Error("language model call failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return c.failed(msg.UserID, question, chunks), nil
	}

	c.appendTurns(msg.UserID, question, answer)
	c.metrics.Message(domain.ReplyAnswer)

	suffix := c.cfg.FoundSuffix
	if c.cfg.NoInfoMarker != "" && strings.Contains(answer, c.cfg.NoInfoMarker) {
		suffix = c.cfg.NotFoundSuffix
	}

	log.Info("question answered", zap.Int("chunks", len(chunks)), zap.Duration("elapsed", time.Since(start)))
	return domain.Reply{Kind: domain.ReplyAnswer, Text: answer + suffix, Sources: chunks}, nil
}

// failed builds the apology reply. The pair is kept only when configured.
func (c *Conversation) failed(userID, question string, chunks []domain.RetrievedChunk) domain.Reply {
	if c.cfg.PersistFailedTurns {
		c.appendTurns(userID, question, c.cfg.ErrorMessage)
	}
	c.metrics.Message("failed")
	return domain.Reply{Kind: domain.ReplyAnswer, Text: c.cfg.ErrorMessage, Sources: chunks, Failed: true}
}

func (c *Conversation) greetingText(msg domain.Message) string {
	name := msg.DisplayName
	if name == "" {
		name = defaultDisplayName
	}
	return renderTemplate(c.cfg.GreetingTemplate, map[string]string{
		"name": name,
		"bot":  c.cfg.BotName,
	})
}

// Reset discards the user's session. It waits for an in-flight question turn.
func (c *Conversation) Reset(userID string) bool {
	defer c.lockUser(userID)()

	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.sessions[userID]
	delete(c.sessions, userID)
	c.metrics.SetActiveSessions(len(c.sessions))
	return existed
}

// Session returns a copy of the user's session
func (c *Conversation) Session(userID string) (*domain.ConversationSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return nil, false
	}
	cp := *s
	cp.Turns = append([]domain.Turn(nil), s.Turns...)
	return &cp, true
}

// ActiveSessions returns the number of sessions held in memory
func (c *Conversation) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// lockUser blocks until the user's lock is held and returns its release.
func (c *Conversation) lockUser(userID string) func() {
	c.mu.Lock()
	l, ok := c.locks[userID]
	if !ok {
		l = &userLock{}
		c.locks[userID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, userID)
		}
		c.mu.Unlock()
	}
}

// ensureSession creates the session if absent and returns a copy of its turns.
func (c *Conversation) ensureSession(msg domain.Message) []domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[msg.UserID]
	if !ok {
		now := c.now()
		s = &domain.ConversationSession{
			UserID:      msg.UserID,
			DisplayName: msg.DisplayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		c.sessions[msg.UserID] = s
		c.metrics.SetActiveSessions(len(c.sessions))
	}
	if msg.DisplayName != "" {
		s.DisplayName = msg.DisplayName
	}
	return append([]domain.Turn(nil), s.Turns...)
}

func (c *Conversation) appendTurns(userID, question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return
	}
	s.Turns = append(s.Turns,
		domain.Turn{Role: domain.RoleUser, Content: question},
		domain.Turn{Role: domain.RoleAssistant, Content: answer},
	)
	s.UpdatedAt = c.now()
}

// normalize lowercases and splits text, trimming punctuation around each word.
func normalize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, tokenPunctuation)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func vocabulary(entries []string) [][]string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		if toks := normalize(e); len(toks) > 0 {
			out = append(out, toks)
		}
	}
	return out
}

// containsAny reports whether any entry appears in tokens as a contiguous run.
func containsAny(tokens []string, entries [][]string) bool {
	for _, entry := range entries {
		for i := 0; i+len(entry) <= len(tokens); i++ {
			match := true
			for j, t := range entry {
				if tokens[i+j] != t {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}
