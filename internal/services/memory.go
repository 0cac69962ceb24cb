package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/metrics"
	"jaco-backend/internal/models"
)

const FactExtractionPrompt = `You are a fact extraction engine. Given a conversation between a user and an assistant, extract personal facts about the **user** only.

Return a JSON array of objects. Each object must have exactly these keys:
- "content": a concise factual statement about the user (string)
- "category": one of: biographical, preference, technical, behavioral, contextual
- "confidence": a float between 0.0 and 1.0

Rules:
- Only extract facts the user explicitly stated or clearly implied.
- Do NOT invent, assume, or speculate.
- Do NOT extract facts about the assistant.
- If there are no extractable user facts, return an empty array [].
- Return ONLY the JSON array, no markdown, no commentary.

Categories:
- biographical: name, location, age, occupation, life events
- preference: likes, dislikes, tool/language/editor choices
- technical: programming languages, frameworks, skills, stack
- behavioral: work habits, communication style, schedule
- contextual: current project, immediate goals, recent events

Conversation:
%s

JSON array of extracted facts:`

const MemoryPreamble = "Here is what you know about this user from previous conversations:"

const (
	// duplicateRatio is the similarity at which a fact repeats a stored memory.
	duplicateRatio = 0.65

	DefaultMaxMemories = 20
	memoryScanLimit    = 200
	memoryWindow       = 6
)

func formatConversation(messages []models.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, strings.ToUpper(role[:1])+role[1:]+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func hasUserMessage(messages []models.ChatMessage) bool {
	for _, m := range messages {
		if m.Role == models.RoleUser {
			return true
		}
	}
	return false
}

// stripCodeFence removes a ```json fence the model sometimes wraps output in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type rawFact struct {
	Content    *string `json:"content"`
	Category   *string `json:"category"`
	Confidence any     `json:"confidence"`
}

func parseConfidence(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		return f, err == nil
	}
	return 0, false
}

func (r rawFact) valid() (models.Fact, bool) {
	if r.Content == nil || r.Category == nil || r.Confidence == nil {
		return models.Fact{}, false
	}
	content := strings.TrimSpace(*r.Content)
	if content == "" || !models.ValidMemoryCategory(*r.Category) {
		return models.Fact{}, false
	}
	conf, ok := parseConfidence(r.Confidence)
	if !ok || conf < 0 || conf > 1 {
		return models.Fact{}, false
	}
	return models.Fact{Content: content, Category: *r.Category, Confidence: conf}, true
}

// similarity is difflib's SequenceMatcher ratio over the runes of a and b,
// ignoring case.
func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(strings.ToLower(a), ""), strings.Split(strings.ToLower(b), ""))
	return m.Ratio()
}

func isDuplicateFact(content string, existing []string) bool {
	for _, e := range existing {
		if similarity(content, e) >= duplicateRatio {
			return true
		}
	}
	return false
}

// ExtractFacts asks the model for user facts in messages and marks those
// already covered by existing. Any failure yields no facts.
func ExtractFacts(ctx context.Context, llm LLM, messages []models.ChatMessage, existing []string) []models.Fact {
	if llm == nil || !hasUserMessage(messages) {
		return nil
	}

	raw, err := llm.Complete(ctx, "fact_extraction", fmt.Sprintf(FactExtractionPrompt, formatConversation(messages)))
	if err != nil {
		log.Warn().Err(err).Msg("fact extraction call failed")
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &items); err != nil {
		log.Warn().Err(err).Msg("fact extraction returned no JSON array")
		return nil
	}

	facts := make([]models.Fact, 0, len(items))
	for _, item := range items {
		var rf rawFact
		if err := json.Unmarshal(item, &rf); err != nil {
			continue
		}
		fact, ok := rf.valid()
		if !ok {
			continue
		}
		fact.IsNew = !isDuplicateFact(fact.Content, existing)
		facts = append(facts, fact)
	}
	return facts
}

// FormatMemoriesForPrompt renders up to limit memories as a bullet list under
// MemoryPreamble. No memories renders as "".
func FormatMemoriesForPrompt(memories []*models.Memory, limit int) string {
	if len(memories) == 0 {
		return ""
	}
	if limit <= 0 {
		limit = DefaultMaxMemories
	}
	if len(memories) > limit {
		memories = memories[:limit]
	}

	lines := make([]string, 0, len(memories)+2)
	lines = append(lines, MemoryPreamble, "")
	for _, m := range memories {
		lines = append(lines, "- "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// InjectSystemContext appends addition to a leading system message, or
// prepends one when the conversation has none.
func InjectSystemContext(messages []models.ChatMessage, addition string) []models.ChatMessage {
	if addition == "" {
		return messages
	}
	out := make([]models.ChatMessage, 0, len(messages)+1)
	if len(messages) > 0 && messages[0].Role == models.RoleSystem {
		out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: messages[0].Content + "\n\n" + addition})
		return append(out, messages[1:]...)
	}
	out = append(out, models.ChatMessage{Role: models.RoleSystem, Content: addition})
	return append(out, messages...)
}

type MemoryStore interface {
	Create(ctx context.Context, m *models.Memory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Memory, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Memory, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryService keeps facts learned about a user and hands the relevant ones
// back for the model's system prompt.
type MemoryService struct {
	store       MemoryStore
	llm         LLM
	embedder    Embedder
	maxInjected int
}

// NewMemoryService builds the service. embedder may be nil, in which case
// recall falls back to the newest memories.
func NewMemoryService(store MemoryStore, llm LLM, embedder Embedder, maxInjected int) *MemoryService {
	if maxInjected <= 0 {
		maxInjected = DefaultMaxMemories
	}
	return &MemoryService{store: store, llm: llm, embedder: embedder, maxInjected: maxInjected}
}

// Remember extracts facts from messages and stores the new ones.
func (s *MemoryService) Remember(ctx context.Context, userID, chatID uuid.UUID, messages []models.ChatMessage) ([]*models.Memory, error) {
	stored, err := s.store.ListByUser(ctx, userID, memoryScanLimit)
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(stored))
	for _, m := range stored {
		existing = append(existing, m.Content)
	}

	var saved []*models.Memory
	for _, fact := range ExtractFacts(ctx, s.llm, messages, existing) {
		// The batch may repeat itself as well as the store.
		if !fact.IsNew || isDuplicateFact(fact.Content, existing) {
			continue
		}
		source := chatID
		m := &models.Memory{
			UserID:       userID,
			SourceChatID: &source,
			Content:      fact.Content,
			Category:     fact.Category,
			Confidence:   fact.Confidence,
		}
		if s.embedder != nil {
			if vec, err := s.embedder.Embed(ctx, fact.Content); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("memory embedding failed")
			} else {
				m.Embedding = vec
			}
		}
		if err := s.store.Create(ctx, m); err != nil {
			return saved, err
		}
		existing = append(existing, m.Content)
		saved = append(saved, m)
		metrics.MemoriesSaved.WithLabelValues(m.Category).Inc()
	}
	return saved, nil
}

// Relevant returns up to the configured number of memories, newest first.
// When there are more than fit and an embedder is set, the ones closest to
// query are picked instead.
func (s *MemoryService) Relevant(ctx context.Context, userID uuid.UUID, query string) ([]*models.Memory, error) {
	memories, err := s.store.ListByUser(ctx, userID, memoryScanLimit)
	if err != nil {
		return nil, err
	}

	if s.embedder != nil && strings.TrimSpace(query) != "" && len(memories) > s.maxInjected {
		qvec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			log.Warn().Err(err).Msg("memory query embedding failed, using newest memories")
		} else {
			rankBySimilarity(memories, qvec)
		}
	}

	if len(memories) > s.maxInjected {
		memories = memories[:s.maxInjected]
	}
	return memories, nil
}

// rankBySimilarity orders memories by cosine similarity to q. Memories
// without an embedding keep their order after the scored ones.
func rankBySimilarity(memories []*models.Memory, q []float32) {
	scores := make(map[uuid.UUID]float64, len(memories))
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			scores[m.ID] = -2
			continue
		}
		scores[m.ID] = CosineSimilarity(m.Embedding, q)
	}
	sort.SliceStable(memories, func(i, j int) bool {
		return scores[memories[i].ID] > scores[memories[j].ID]
	})
}

// Recall renders the memories relevant to query for a system prompt. A
// failed lookup renders as "".
func (s *MemoryService) Recall(ctx context.Context, userID uuid.UUID, query string) string {
	memories, err := s.Relevant(ctx, userID, query)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("memory lookup failed")
		return ""
	}
	return FormatMemoriesForPrompt(memories, s.maxInjected)
}

func (s *MemoryService) List(ctx context.Context, userID uuid.UUID) ([]*models.Memory, error) {
	return s.store.ListByUser(ctx, userID, memoryScanLimit)
}

func (s *MemoryService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "Memory not found")
	}
	if m.UserID != userID {
		return &ForbiddenError{Message: "Access denied"}
	}
	return notFoundOr(s.store.Delete(ctx, id), "Memory not found")
}
