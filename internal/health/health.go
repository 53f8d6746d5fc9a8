package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"kezmail/backend/internal/storage"
)

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, logger *zap.Logger) *Checker {
	checker := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	checker.health.AddLivenessCheck("store", func() error {
		return checker.store.Health()
	})
	checker.health.AddReadinessCheck("store", func() error {
		return checker.store.Health()
	})

	return checker
}

// LiveHandler 存活检查处理器
func (c *Checker) LiveHandler() http.HandlerFunc {
	return c.health.LiveEndpoint
}

// ReadyHandler 就绪检查处理器
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return c.health.ReadyEndpoint
}
