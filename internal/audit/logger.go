package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

// Logger 攻击审计日志记录器。
//
// 写库在独立协程内进行，请求路径只做入队：审计失败或队列打满
// 都不会阻塞或中断正在处理的请求，只会落一条降级日志。
type Logger struct {
	store storage.AttackLogRepository
	log   *zap.Logger

	queue chan *domain.AttackLog
	wg    sync.WaitGroup
	once  sync.Once
}

// NewLogger 创建审计日志记录器并启动写入协程。
func NewLogger(store storage.AttackLogRepository, log *zap.Logger, queueSize int) *Logger {
	if queueSize <= 0 {
		queueSize = 256
	}

	logger := &Logger{
		store: store,
		log:   log,
		queue: make(chan *domain.AttackLog, queueSize),
	}

	logger.wg.Add(1)
	go logger.worker()

	return logger
}

// Record 记录一条攻击审计。非阻塞，队列满时丢弃并告警。
func (l *Logger) Record(ipAddress, userAgent string, action domain.AttackAction, detail string) {
	entry := &domain.AttackLog{
		ID:        uuid.NewString(),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now(),
	}

	select {
	case l.queue <- entry:
	default:
		l.log.Warn("attack log queue full, entry dropped",
			zap.String("ip", ipAddress),
			zap.String("action", string(action)),
		)
	}
}

// Close 停止接收新记录并等待队列排空。
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
}

func (l *Logger) worker() {
	defer l.wg.Done()

	for entry := range l.queue {
		if err := l.store.SaveAttackLog(entry); err != nil {
			// 审计写入失败只降级记录，绝不向上传播
			l.log.Error("failed to persist attack log",
				zap.String("ip", entry.IPAddress),
				zap.String("action", string(entry.Action)),
				zap.Error(err),
			)
		}
	}
}
