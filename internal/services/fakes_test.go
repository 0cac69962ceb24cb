package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jaco-backend/internal/models"
	"jaco-backend/internal/repository"
)

type memSideChats struct {
	mu        sync.Mutex
	chats     map[uuid.UUID]*models.SideChat
	discarded int64
	cutoff    time.Time
}

func newMemSideChats() *memSideChats {
	return &memSideChats{chats: map[uuid.UUID]*models.SideChat{}}
}

func (m *memSideChats) Create(_ context.Context, sc *models.SideChat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc.ID = uuid.New()
	sc.CreatedAt = time.Now()
	cp := *sc
	m.chats[sc.ID] = &cp
	return nil
}

func (m *memSideChats) GetByID(_ context.Context, id uuid.UUID) (*models.SideChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.chats[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *sc
	cp.Messages = append([]models.SideChatMessage{}, sc.Messages...)
	return &cp, nil
}

func (m *memSideChats) ListByChat(_ context.Context, chatID, userID uuid.UUID) ([]*models.SideChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SideChat
	for _, sc := range m.chats {
		if sc.ChatID == chatID && sc.UserID == userID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSideChats) AddMessage(_ context.Context, msg *models.SideChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.chats[msg.SideChatID]
	if !ok {
		return pgx.ErrNoRows
	}
	if sc.Status != models.SideChatOpen {
		return repository.ErrSideChatClosed
	}
	msg.ID = uuid.New()
	msg.Ordering = len(sc.Messages)
	sc.Messages = append(sc.Messages, *msg)
	return nil
}

func (m *memSideChats) Close(_ context.Context, id uuid.UUID, status string, combined *string) (*models.SideChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.chats[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if sc.Status != models.SideChatOpen {
		return nil, repository.ErrSideChatClosed
	}
	sc.Status = status
	sc.CombinedStepContent = combined
	cp := *sc
	return &cp, nil
}

func (m *memSideChats) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.chats, id)
	return nil
}

func (m *memSideChats) DiscardIdle(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoff = before
	return m.discarded, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (p *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

type memChats struct {
	mu    sync.Mutex
	chats map[uuid.UUID]*models.Chat
}

func newMemChats() *memChats {
	return &memChats{chats: map[uuid.UUID]*models.Chat{}}
}

func (m *memChats) put(c *models.Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[c.ID] = c
}

func (m *memChats) GetByID(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	cp.Messages = append([]models.ChatMessage{}, c.Messages...)
	cp.MessageEmbeddings = append([][]float32{}, c.MessageEmbeddings...)
	return &cp, nil
}

func (m *memChats) GetOrCreate(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error) {
	m.mu.Lock()
	if _, ok := m.chats[id]; !ok {
		m.chats[id] = &models.Chat{ID: id, UserID: userID, Meta: models.DefaultJacoMeta()}
	}
	m.mu.Unlock()
	return m.GetByID(ctx, id)
}

func (m *memChats) UpdateMeta(_ context.Context, id uuid.UUID, meta models.JacoMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Meta = meta
	return nil
}

func (m *memChats) UpdateTitle(_ context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Title = title
	return nil
}

func (m *memChats) AppendMessage(_ context.Context, id uuid.UUID, msg models.ChatMessage, embedding []float32, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Messages = append(c.Messages, msg)
	if embedding != nil {
		c.MessageEmbeddings = append(c.MessageEmbeddings, embedding)
		if keep > 0 && len(c.MessageEmbeddings) > keep {
			c.MessageEmbeddings = c.MessageEmbeddings[len(c.MessageEmbeddings)-keep:]
		}
	}
	return nil
}

// memBoundaries commits a split's chat into chats along with the boundary.
// The next failures calls return err without writing anything.
type memBoundaries struct {
	chats    *memChats
	list     []*models.TopicBoundary
	failures int
	err      error
}

func (m *memBoundaries) CreateSplit(_ context.Context, chat *models.Chat, b *models.TopicBoundary) error {
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	if _, err := m.chats.GetByID(context.Background(), chat.ID); err != nil {
		m.chats.put(chat)
	}
	for _, existing := range m.list {
		if existing.ID == b.ID {
			return nil
		}
	}
	m.list = append(m.list, b)
	return nil
}

func (m *memBoundaries) ListByChat(_ context.Context, chatID uuid.UUID) ([]*models.TopicBoundary, error) {
	out := []*models.TopicBoundary{}
	for _, b := range m.list {
		if b.OriginalChatID == chatID || b.NewChatID == chatID {
			out = append(out, b)
		}
	}
	return out, nil
}

type memJobs struct {
	jobs     map[uuid.UUID]*models.Job
	statuses []string
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*models.Job{}}
}

func (m *memJobs) Create(_ context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *j
	return &cp, nil
}

func (m *memJobs) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.statuses = append(m.statuses, status)
	if j, ok := m.jobs[id]; ok {
		j.Status = status
	}
	return nil
}

func (m *memJobs) UpdateError(_ context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	if j, ok := m.jobs[id]; ok {
		j.ErrorMessage = &errMsg
		j.RetryCount = retryCount
	}
	return nil
}

func (m *memJobs) SetResult(_ context.Context, id, resultID uuid.UUID) error {
	if j, ok := m.jobs[id]; ok {
		j.ResultID = &resultID
	}
	return nil
}

type memQueue struct {
	jobs []*models.Job
	err  error
}

func (q *memQueue) Enqueue(_ context.Context, j *models.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, j)
	return nil
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

var errBoom = errors.New("boom")

// memMemories keeps memories newest first, like the repository lists them.
type memMemories struct {
	list      []*models.Memory
	createErr error
	listErr   error
}

func (m *memMemories) Create(_ context.Context, mem *models.Memory) error {
	if m.createErr != nil {
		return m.createErr
	}
	mem.ID = uuid.New()
	mem.CreatedAt = time.Now()
	m.list = append([]*models.Memory{mem}, m.list...)
	return nil
}

func (m *memMemories) GetByID(_ context.Context, id uuid.UUID) (*models.Memory, error) {
	for _, mem := range m.list {
		if mem.ID == id {
			return mem, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memMemories) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*models.Memory, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.Memory{}
	for _, mem := range m.list {
		if mem.UserID == userID && len(out) < limit {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *memMemories) Delete(_ context.Context, id uuid.UUID) error {
	for i, mem := range m.list {
		if mem.ID == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}
