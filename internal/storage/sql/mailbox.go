package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

// ========== Mailbox Repository ==========

// CreateMailbox 在同一个事务内完成"当日计数 + 插入"。
//
// 两步之间用按来源 IP 派生的咨询锁串行化，同一来源的并发创建
// 不会在只剩一个配额时同时成功。不同来源之间互不阻塞。
func (s *Store) CreateMailbox(mailbox *domain.Mailbox, dailyLimit int) (int, error) {
	ctx := context.Background()
	lockName := "mailbox_quota:" + mailbox.SourceIP

	// MySQL 的 GET_LOCK 绑定连接而非事务，固定一条连接并显式释放。
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to obtain connection: %w", err)
	}
	defer conn.Close()

	if s.driverName == "mysql" {
		var acquired sql.NullInt64
		if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, 5)`, lockName).Scan(&acquired); err != nil {
			return 0, fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
		if !acquired.Valid || acquired.Int64 != 1 {
			return 0, fmt.Errorf("timed out acquiring advisory lock for source %s", mailbox.SourceIP)
		}
		defer conn.ExecContext(ctx, `SELECT RELEASE_LOCK(?)`, lockName)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.driverName == "postgres" {
		// 事务级咨询锁，随提交或回滚自动释放。
		if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, lockName); err != nil {
			return 0, fmt.Errorf("failed to acquire advisory lock: %w", err)
		}
	}

	dayStart := startOfDay(mailbox.CreatedAt)
	dayEnd := dayStart.Add(24 * time.Hour)

	var used int
	countQuery := s.rebind(`
		SELECT COUNT(*) FROM mailboxes
		WHERE source_ip = ? AND created_at >= ? AND created_at < ?
	`)
	if err := tx.QueryRow(countQuery, mailbox.SourceIP, dayStart, dayEnd).Scan(&used); err != nil {
		return 0, fmt.Errorf("failed to count today's mailboxes: %w", err)
	}

	if used >= dailyLimit {
		return used, storage.ErrQuotaExceeded
	}

	insertQuery := s.rebind(`
		INSERT INTO mailboxes (id, address, token, source_ip, created_at, expires_at, last_accessed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = tx.Exec(insertQuery,
		mailbox.ID,
		mailbox.Address,
		mailbox.Token,
		mailbox.SourceIP,
		mailbox.CreatedAt,
		mailbox.ExpiresAt,
		mailbox.LastAccessedAt,
		mailbox.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return used, storage.ErrAddressTaken
		}
		return used, fmt.Errorf("failed to insert mailbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return used, fmt.Errorf("failed to commit mailbox creation: %w", err)
	}
	return used, nil
}

// isUniqueViolation 判断错误是否为唯一约束冲突（地址碰撞）。
func isUniqueViolation(err error) bool {
	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// GetMailboxByAddress 根据地址获取邮箱
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	query := s.rebind(`
		SELECT id, address, token, source_ip, created_at, expires_at, last_accessed_at, status
		FROM mailboxes
		WHERE address = ?
	`)

	var mailbox domain.Mailbox
	err := s.db.QueryRow(query, address).Scan(
		&mailbox.ID,
		&mailbox.Address,
		&mailbox.Token,
		&mailbox.SourceIP,
		&mailbox.CreatedAt,
		&mailbox.ExpiresAt,
		&mailbox.LastAccessedAt,
		&mailbox.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrMailboxNotFound
		}
		return nil, fmt.Errorf("failed to query mailbox: %w", err)
	}
	return &mailbox, nil
}

// MarkMailboxExpired 条件更新 active -> expired
func (s *Store) MarkMailboxExpired(id string) (bool, error) {
	query := s.rebind(`UPDATE mailboxes SET status = 'expired' WHERE id = ? AND status = 'active'`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark mailbox expired: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// TouchMailbox 更新邮箱的最后访问时间
func (s *Store) TouchMailbox(id string, at time.Time) error {
	query := s.rebind(`UPDATE mailboxes SET last_accessed_at = ? WHERE id = ?`)
	_, err := s.db.Exec(query, at, id)
	return err
}

// CountTodayBySource 统计来源 IP 当日创建的邮箱数量
func (s *Store) CountTodayBySource(sourceIP string, now time.Time) (int, error) {
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := s.rebind(`
		SELECT COUNT(*) FROM mailboxes
		WHERE source_ip = ? AND created_at >= ? AND created_at < ?
	`)
	var count int
	if err := s.db.QueryRow(query, sourceIP, dayStart, dayEnd).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count today's mailboxes: %w", err)
	}
	return count, nil
}

// ListTodayBySource 列出来源 IP 当日创建的邮箱，按创建时间倒序
func (s *Store) ListTodayBySource(sourceIP string, now time.Time) ([]domain.Mailbox, error) {
	dayStart := startOfDay(now)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := s.rebind(`
		SELECT id, address, token, source_ip, created_at, expires_at, last_accessed_at, status
		FROM mailboxes
		WHERE source_ip = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
	`)
	rows, err := s.db.Query(query, sourceIP, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's mailboxes: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Mailbox, 0)
	for rows.Next() {
		var mailbox domain.Mailbox
		if err := rows.Scan(
			&mailbox.ID,
			&mailbox.Address,
			&mailbox.Token,
			&mailbox.SourceIP,
			&mailbox.CreatedAt,
			&mailbox.ExpiresAt,
			&mailbox.LastAccessedAt,
			&mailbox.Status,
		); err != nil {
			return nil, err
		}
		list = append(list, mailbox)
	}
	return list, rows.Err()
}

// MarkExpiredMailboxes 批量标记过期邮箱
func (s *Store) MarkExpiredMailboxes(now time.Time) (int64, error) {
	query := s.rebind(`UPDATE mailboxes SET status = 'expired' WHERE status = 'active' AND expires_at < ?`)
	result, err := s.db.Exec(query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired mailboxes: %w", err)
	}
	return result.RowsAffected()
}

// DeleteMessagesExpiredBefore 删除过期超过保留期的邮箱下的所有邮件
func (s *Store) DeleteMessagesExpiredBefore(cutoff time.Time) (int64, error) {
	query := s.rebind(`
		DELETE FROM messages
		WHERE mailbox_id IN (
			SELECT id FROM mailboxes WHERE status = 'expired' AND expires_at < ?
		)
	`)
	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}
	return result.RowsAffected()
}

// DeleteMailboxesExpiredBefore 删除过期超过保留期的邮箱。
//
// 邮件先于邮箱删除：调用方保证 DeleteMessagesExpiredBefore 使用
// 不晚于此处的 cutoff，残余邮件在这里再兜底清一次，避免孤儿行。
func (s *Store) DeleteMailboxesExpiredBefore(cutoff time.Time) (int64, error) {
	if _, err := s.DeleteMessagesExpiredBefore(cutoff); err != nil {
		return 0, err
	}

	query := s.rebind(`DELETE FROM mailboxes WHERE status = 'expired' AND expires_at < ?`)
	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired mailboxes: %w", err)
	}
	return result.RowsAffected()
}

// ========== Message Repository ==========

// SaveMessage 保存一封邮件
func (s *Store) SaveMessage(message *domain.Message) error {
	query := s.rebind(`
		INSERT INTO messages (id, mailbox_id, from_email, subject, body, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		message.ID,
		message.MailboxID,
		message.From,
		message.Subject,
		message.Body,
		message.ReceivedAt,
	)
	return err
}

// ListMessages 列出邮箱内的邮件，按接收时间倒序
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	query := s.rebind(`
		SELECT id, mailbox_id, from_email, subject, body, received_at
		FROM messages
		WHERE mailbox_id = ?
		ORDER BY received_at DESC
	`)
	rows, err := s.db.Query(query, mailboxID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Message, 0)
	for rows.Next() {
		var message domain.Message
		if err := rows.Scan(
			&message.ID,
			&message.MailboxID,
			&message.From,
			&message.Subject,
			&message.Body,
			&message.ReceivedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, message)
	}
	return list, rows.Err()
}
