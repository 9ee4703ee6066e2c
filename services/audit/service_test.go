package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/models"
	"go.uber.org/zap"
)

// MockAnswerRepository is a mock implementation of AnswerRepository
type MockAnswerRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.AnswerRecord
}

func (m *MockAnswerRepository) Insert(ctx context.Context, rec *models.AnswerRecord) error {
	args := m.Called(ctx, rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, rec)
	return args.Error(0)
}

func (m *MockAnswerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnswerRecord, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*models.AnswerRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAnswerRepository) List(ctx context.Context, limit, offset int) ([]*models.AnswerRecord, error) {
	args := m.Called(ctx, limit, offset)
	if recs := args.Get(0); recs != nil {
		return recs.([]*models.AnswerRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAnswerRepository) Inserted() []*models.AnswerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AnswerRecord(nil), m.inserted...)
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishAnswer(ctx context.Context, rec *models.AnswerRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func newRecord(requestID string) *models.AnswerRecord {
	rec := models.NewAnswerRecord(requestID, "How do I enroll?")
	rec.MarkAsCompleted("Fill the form.", []string{"https://faq.example/enroll"}, models.NewDefaultEvaluation(7), 42)
	return rec
}

func TestAuditService_StartStop(t *testing.T) {
	service := NewAuditService(new(MockAnswerRepository), nil, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)

	// Stopped services reject events and a second stop
	assert.Error(t, service.RecordAnswer(newRecord("late")))
	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_DefaultsApplied(t *testing.T) {
	service := NewAuditService(nil, nil, zap.NewNop(), Config{})
	stats := service.GetStats()
	assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
	assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
}

func TestAuditService_NotStarted(t *testing.T) {
	service := NewAuditService(nil, nil, zap.NewNop(), DefaultConfig())
	assert.Error(t, service.RecordAnswer(newRecord("r")))
	assert.Error(t, service.LogEventBlocking(context.Background(), &AuditEvent{Record: newRecord("r")}))
}

func TestAuditService_RecordAnswer(t *testing.T) {
	repo := new(MockAnswerRepository)
	publisher := new(MockPublisher)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishAnswer", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, publisher, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, service.Start())

	require.NoError(t, service.RecordAnswer(newRecord("req-1")))

	// Stop drains the queue
	require.NoError(t, service.Stop(5*time.Second))

	inserted := repo.Inserted()
	require.Len(t, inserted, 1)
	assert.Equal(t, "req-1", inserted[0].RequestID)
	publisher.AssertNumberOfCalls(t, "PublishAnswer", 1)
}

func TestAuditService_RepositoryFailureStillPublishes(t *testing.T) {
	repo := new(MockAnswerRepository)
	publisher := new(MockPublisher)
	repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	publisher.On("PublishAnswer", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, publisher, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())
	require.NoError(t, service.RecordAnswer(newRecord("req-2")))
	require.NoError(t, service.Stop(5*time.Second))

	publisher.AssertNumberOfCalls(t, "PublishAnswer", 1)
}

func TestAuditService_PublishOnly(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("PublishAnswer", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(nil, publisher, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())
	require.NoError(t, service.RecordAnswer(newRecord("req-3")))
	require.NoError(t, service.Stop(5*time.Second))

	publisher.AssertNumberOfCalls(t, "PublishAnswer", 1)
}

func TestAuditService_LogEventBlocking(t *testing.T) {
	repo := new(MockAnswerRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, service.Start())

	err := service.LogEventBlocking(context.Background(), &AuditEvent{Record: newRecord("req-4")})
	require.NoError(t, err)
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, repo.Inserted(), 1)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	repo := new(MockAnswerRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 1000, WorkerCount: 5})
	require.NoError(t, service.Start())

	goroutineCount := 10
	eventsPerGoroutine := 10
	var wg sync.WaitGroup

	for i := 0; i < goroutineCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				_ = service.RecordAnswer(newRecord(uuid.NewString()))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, repo.Inserted(), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_BufferFull(t *testing.T) {
	repo := new(MockAnswerRepository)
	release := make(chan struct{})
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})

	service := NewAuditService(repo, nil, zap.NewNop(), Config{BufferSize: 5, WorkerCount: 1})
	require.NoError(t, service.Start())

	successCount := 0
	for i := 0; i < 20; i++ {
		if err := service.RecordAnswer(newRecord(uuid.NewString())); err == nil {
			successCount++
		}
	}

	// one event may be held by the blocked worker, the rest fill the buffer
	assert.LessOrEqual(t, successCount, 6)
	assert.GreaterOrEqual(t, successCount, 5)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, repo.Inserted(), successCount)
}

func TestAuditService_RedactsPersonalData(t *testing.T) {
	repo := new(MockAnswerRepository)
	publisher := new(MockPublisher)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishAnswer", mock.Anything, mock.MatchedBy(func(rec *models.AnswerRecord) bool {
		return rec.Question == "I am [EMAIL_REDACTED], how do I enroll?"
	})).Return(nil)

	service := NewAuditService(repo, publisher, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1, RedactPII: true})
	require.NoError(t, service.Start())

	rec := models.NewAnswerRecord("req-pii", "I am ana@upb.edu.co, how do I enroll?")
	rec.MarkAsCompleted("Call 555-123-4567.", nil, nil, 10)
	require.NoError(t, service.RecordAnswer(rec))
	require.NoError(t, service.Stop(5*time.Second))

	inserted := repo.Inserted()
	require.Len(t, inserted, 1)
	assert.Equal(t, "I am [EMAIL_REDACTED], how do I enroll?", inserted[0].Question)
	assert.Equal(t, "Call [PHONE_REDACTED].", inserted[0].Answer)
	assert.Equal(t, rec.ID, inserted[0].ID)
	publisher.AssertExpectations(t)

	// the caller's record is left untouched
	assert.Equal(t, "I am ana@upb.edu.co, how do I enroll?", rec.Question)
}
