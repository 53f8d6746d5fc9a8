package memory

import (
	"sort"
	"sync"
	"time"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

// Store 使用内存保存邮箱、邮件与封禁数据，主要用于开发与测试。
//
// 所有读写都在同一把锁下进行，因此配额检查加插入天然是原子的。
type Store struct {
	mu         sync.RWMutex
	mailboxes  map[string]*domain.Mailbox // mailboxID -> mailbox
	byAddress  map[string]string          // address -> mailboxID
	messages   map[string][]*domain.Message
	ipBlocks   map[string]*domain.IPBlock // blockID -> block
	byIP       map[string]string          // ipAddress -> blockID
	attackLogs []*domain.AttackLog
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes: make(map[string]*domain.Mailbox),
		byAddress: make(map[string]string),
		messages:  make(map[string][]*domain.Message),
		ipBlocks:  make(map[string]*domain.IPBlock),
		byIP:      make(map[string]string),
	}
}

// startOfDay 返回给定时间所在日历日（服务器本地时区）的零点。
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return startOfDay(a).Equal(startOfDay(b))
}

// CreateMailbox 在配额内创建邮箱。
func (s *Store) CreateMailbox(mailbox *domain.Mailbox, dailyLimit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.countTodayLocked(mailbox.SourceIP, mailbox.CreatedAt)
	if used >= dailyLimit {
		return used, storage.ErrQuotaExceeded
	}

	if _, exists := s.byAddress[mailbox.Address]; exists {
		return used, storage.ErrAddressTaken
	}

	stored := *mailbox
	s.mailboxes[stored.ID] = &stored
	s.byAddress[stored.Address] = stored.ID
	return used, nil
}

func (s *Store) countTodayLocked(sourceIP string, now time.Time) int {
	count := 0
	for _, mailbox := range s.mailboxes {
		if mailbox.SourceIP == sourceIP && sameDay(mailbox.CreatedAt, now) {
			count++
		}
	}
	return count
}

// GetMailboxByAddress 根据地址获取邮箱。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	copied := *s.mailboxes[id]
	return &copied, nil
}

// MarkMailboxExpired 条件更新 active -> expired。
func (s *Store) MarkMailboxExpired(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailbox, ok := s.mailboxes[id]
	if !ok || mailbox.Status != domain.MailboxActive {
		return false, nil
	}
	mailbox.Status = domain.MailboxExpired
	return true, nil
}

// TouchMailbox 更新邮箱的最后访问时间。
func (s *Store) TouchMailbox(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mailbox, ok := s.mailboxes[id]; ok {
		mailbox.LastAccessedAt = at
	}
	return nil
}

// CountTodayBySource 统计来源 IP 当日创建的邮箱数量。
func (s *Store) CountTodayBySource(sourceIP string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countTodayLocked(sourceIP, now), nil
}

// ListTodayBySource 列出来源 IP 当日创建的邮箱，按创建时间倒序。
func (s *Store) ListTodayBySource(sourceIP string, now time.Time) ([]domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Mailbox, 0)
	for _, mailbox := range s.mailboxes {
		if mailbox.SourceIP == sourceIP && sameDay(mailbox.CreatedAt, now) {
			list = append(list, *mailbox)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// MarkExpiredMailboxes 批量把超过有效期的 active 邮箱标记为 expired。
func (s *Store) MarkExpiredMailboxes(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked int64
	for _, mailbox := range s.mailboxes {
		if mailbox.Status == domain.MailboxActive && mailbox.ExpiresAt.Before(now) {
			mailbox.Status = domain.MailboxExpired
			marked++
		}
	}
	return marked, nil
}

// DeleteMessagesExpiredBefore 删除过期超过保留期的邮箱下的所有邮件。
func (s *Store) DeleteMessagesExpiredBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, mailbox := range s.mailboxes {
		if mailbox.Status == domain.MailboxExpired && mailbox.ExpiresAt.Before(cutoff) {
			deleted += int64(len(s.messages[id]))
			delete(s.messages, id)
		}
	}
	return deleted, nil
}

// DeleteMailboxesExpiredBefore 删除过期超过保留期的邮箱及其邮件（级联）。
func (s *Store) DeleteMailboxesExpiredBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, mailbox := range s.mailboxes {
		if mailbox.Status == domain.MailboxExpired && mailbox.ExpiresAt.Before(cutoff) {
			delete(s.messages, id)
			delete(s.byAddress, mailbox.Address)
			delete(s.mailboxes, id)
			deleted++
		}
	}
	return deleted, nil
}

// SaveMessage 保存一封邮件。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[message.MailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}
	stored := *message
	s.messages[message.MailboxID] = append(s.messages[message.MailboxID], &stored)
	return nil
}

// ListMessages 列出邮箱内的邮件，按接收时间倒序。
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[mailboxID]
	list := make([]domain.Message, 0, len(stored))
	for _, message := range stored {
		list = append(list, *message)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ReceivedAt.After(list[j].ReceivedAt)
	})
	return list, nil
}

// UpsertIPBlock 按 IP 插入或更新封禁记录。
func (s *Store) UpsertIPBlock(block *domain.IPBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existingID, ok := s.byIP[block.IPAddress]; ok {
		existing := s.ipBlocks[existingID]
		existing.Reason = block.Reason
		existing.BlockedUntil = block.BlockedUntil
		existing.UpdatedAt = now
		return nil
	}

	stored := *block
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.ipBlocks[stored.ID] = &stored
	s.byIP[stored.IPAddress] = stored.ID
	return nil
}

// GetIPBlock 根据 IP 获取封禁记录。
func (s *Store) GetIPBlock(ipAddress string) (*domain.IPBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIP[ipAddress]
	if !ok {
		return nil, storage.ErrIPBlockNotFound
	}
	copied := *s.ipBlocks[id]
	return &copied, nil
}

// ListIPBlocks 列出全部封禁记录，按创建时间倒序。
func (s *Store) ListIPBlocks() ([]domain.IPBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.IPBlock, 0, len(s.ipBlocks))
	for _, block := range s.ipBlocks {
		list = append(list, *block)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// DeleteIPBlock 删除封禁记录（解封）。
func (s *Store) DeleteIPBlock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, ok := s.ipBlocks[id]
	if !ok {
		return storage.ErrIPBlockNotFound
	}
	delete(s.byIP, block.IPAddress)
	delete(s.ipBlocks, id)
	return nil
}

// SaveAttackLog 追加一条攻击审计记录。
func (s *Store) SaveAttackLog(entry *domain.AttackLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	s.attackLogs = append(s.attackLogs, &stored)
	return nil
}

// ListRecentAttackLogs 列出最近的攻击审计记录，按时间倒序。
func (s *Store) ListRecentAttackLogs(limit int) ([]domain.AttackLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.AttackLog, 0, len(s.attackLogs))
	for _, entry := range s.attackLogs {
		list = append(list, *entry)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Close 实现 storage.Store 接口，内存存储无需释放资源。
func (s *Store) Close() error { return nil }

// Health 实现 storage.Store 接口。
func (s *Store) Health() error { return nil }
