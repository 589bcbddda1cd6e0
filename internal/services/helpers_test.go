package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/chatflow-backend/internal/data/repos"
	"github.com/yungbote/chatflow-backend/internal/data/repos/testutil"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type countingSubmissionMetrics struct {
	mu        sync.Mutex
	answers   map[string]int
	finalized map[string]int
}

func (m *countingSubmissionMetrics) ObserveAnswer(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answers == nil {
		m.answers = map[string]int{}
	}
	m.answers[outcome]++
}

func (m *countingSubmissionMetrics) ObserveFinalize(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalized == nil {
		m.finalized = map[string]int{}
	}
	m.finalized[status]++
}

type testEnv struct {
	db           *gorm.DB
	chatflowRepo repos.ChatflowRepo
	jobRepo      repos.JobRunRepo
	eventRepo    repos.JobRunEventRepo
	subRepo      repos.SubmissionRepo
	cache        *memCache
	metrics      *countingSubmissionMetrics
	jobs         JobService
	chatflows    ChatflowService
	submissions  SubmissionService
	sessions     SessionService
	store        SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	env := &testEnv{
		db:           db,
		chatflowRepo: repos.NewChatflowRepo(db, log),
		jobRepo:      repos.NewJobRunRepo(db, log),
		eventRepo:    repos.NewJobRunEventRepo(db, log),
		subRepo:      repos.NewSubmissionRepo(db, log),
		cache:        newMemCache(),
		metrics:      &countingSubmissionMetrics{},
		store:        NewMemorySessionStore(0),
	}
	notify := NewJobNotifier(log, env.eventRepo, nil)
	env.jobs = NewJobService(db, log, env.jobRepo, env.eventRepo, notify, nil, "", 3)
	env.chatflows = NewChatflowService(db, log, env.chatflowRepo, env.jobs, env.cache, "https://chat.example.com/")
	env.submissions = NewSubmissionService(log, env.subRepo, env.chatflowRepo, env.metrics)
	env.sessions = NewSessionService(log, env.chatflows, env.submissions, env.store)
	return env
}
