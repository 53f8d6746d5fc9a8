package audit

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage/memory"
)

func TestLogger_Record(t *testing.T) {
	store := memory.NewStore()
	logger := NewLogger(store, zap.NewNop(), 16)

	logger.Record("10.0.0.1", "curl/8.0", domain.ActionPatternDetected, "pattern: <script")
	logger.Record("10.0.0.2", "curl/8.0", domain.ActionRateLimit, "Too many requests")
	logger.Close()

	list, err := store.ListRecentAttackLogs(10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	for _, entry := range list {
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	}
}

// failingStore 写入总是失败，用于验证审计失败不向上传播。
type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) SaveAttackLog(*domain.AttackLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("storage down")
}

func (f *failingStore) ListRecentAttackLogs(int) ([]domain.AttackLog, error) {
	return nil, nil
}

func TestLogger_StoreFailureSwallowed(t *testing.T) {
	store := &failingStore{}
	logger := NewLogger(store, zap.NewNop(), 16)

	// 写库失败不会 panic，也不会阻塞调用方
	logger.Record("10.0.0.1", "", domain.ActionBlockedIP, "blocked")
	logger.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.calls)
}

func TestLogger_QueueFullDrops(t *testing.T) {
	// blockingStore 卡住 worker，让队列填满
	release := make(chan struct{})
	store := &blockingStore{release: release}
	logger := NewLogger(store, zap.NewNop(), 1)

	// 第一条被 worker 取走，第二条占满队列，之后的全部丢弃
	for i := 0; i < 10; i++ {
		logger.Record("10.0.0.1", "", domain.ActionRateLimit, "burst")
	}
	close(release)
	logger.Close()

	assert.LessOrEqual(t, store.count(), 3)
}

type blockingStore struct {
	mu      sync.Mutex
	saved   int
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) SaveAttackLog(*domain.AttackLog) error {
	b.once.Do(func() { <-b.release })
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved++
	return nil
}

func (b *blockingStore) ListRecentAttackLogs(int) ([]domain.AttackLog, error) {
	return nil, nil
}

func (b *blockingStore) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saved
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := NewLogger(memory.NewStore(), zap.NewNop(), 4)
	logger.Close()
	logger.Close()
}
