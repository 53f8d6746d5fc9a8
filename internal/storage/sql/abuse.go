package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kezmail/backend/internal/domain"
	"kezmail/backend/internal/storage"
)

// ========== IPBlock Repository ==========

// UpsertIPBlock 按 IP 插入或更新封禁记录
func (s *Store) UpsertIPBlock(block *domain.IPBlock) error {
	now := time.Now()

	var query string
	if s.driverName == "postgres" {
		query = `
			INSERT INTO ip_blocks (id, ip_address, reason, blocked_until, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ip_address) DO UPDATE
			SET reason = EXCLUDED.reason, blocked_until = EXCLUDED.blocked_until, updated_at = EXCLUDED.updated_at
		`
	} else {
		query = `
			INSERT INTO ip_blocks (id, ip_address, reason, blocked_until, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE reason = VALUES(reason), blocked_until = VALUES(blocked_until), updated_at = VALUES(updated_at)
		`
	}

	_, err := s.db.Exec(query,
		block.ID,
		block.IPAddress,
		block.Reason,
		block.BlockedUntil,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ip block: %w", err)
	}
	return nil
}

// GetIPBlock 根据 IP 获取封禁记录
func (s *Store) GetIPBlock(ipAddress string) (*domain.IPBlock, error) {
	query := s.rebind(`
		SELECT id, ip_address, reason, blocked_until, created_at, updated_at
		FROM ip_blocks
		WHERE ip_address = ?
	`)

	var block domain.IPBlock
	var blockedUntil sql.NullTime
	err := s.db.QueryRow(query, ipAddress).Scan(
		&block.ID,
		&block.IPAddress,
		&block.Reason,
		&blockedUntil,
		&block.CreatedAt,
		&block.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrIPBlockNotFound
		}
		return nil, fmt.Errorf("failed to query ip block: %w", err)
	}
	if blockedUntil.Valid {
		block.BlockedUntil = &blockedUntil.Time
	}
	return &block, nil
}

// ListIPBlocks 列出全部封禁记录，按创建时间倒序
func (s *Store) ListIPBlocks() ([]domain.IPBlock, error) {
	query := `
		SELECT id, ip_address, reason, blocked_until, created_at, updated_at
		FROM ip_blocks
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ip blocks: %w", err)
	}
	defer rows.Close()

	list := make([]domain.IPBlock, 0)
	for rows.Next() {
		var block domain.IPBlock
		var blockedUntil sql.NullTime
		if err := rows.Scan(
			&block.ID,
			&block.IPAddress,
			&block.Reason,
			&blockedUntil,
			&block.CreatedAt,
			&block.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if blockedUntil.Valid {
			block.BlockedUntil = &blockedUntil.Time
		}
		list = append(list, block)
	}
	return list, rows.Err()
}

// DeleteIPBlock 删除封禁记录（解封）
func (s *Store) DeleteIPBlock(id string) error {
	query := s.rebind(`DELETE FROM ip_blocks WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete ip block: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrIPBlockNotFound
	}
	return nil
}

// ========== AttackLog Repository ==========

// SaveAttackLog 追加一条攻击审计记录
func (s *Store) SaveAttackLog(entry *domain.AttackLog) error {
	query := s.rebind(`
		INSERT INTO attack_logs (id, ip_address, user_agent, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		entry.ID,
		entry.IPAddress,
		entry.UserAgent,
		entry.Action,
		entry.Detail,
		entry.CreatedAt,
	)
	return err
}

// ListRecentAttackLogs 列出最近的攻击审计记录，按时间倒序
func (s *Store) ListRecentAttackLogs(limit int) ([]domain.AttackLog, error) {
	if limit <= 0 {
		limit = 10
	}

	query := s.rebind(`
		SELECT id, ip_address, user_agent, action, detail, created_at
		FROM attack_logs
		ORDER BY created_at DESC
		LIMIT ?
	`)
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list attack logs: %w", err)
	}
	defer rows.Close()

	list := make([]domain.AttackLog, 0)
	for rows.Next() {
		var entry domain.AttackLog
		if err := rows.Scan(
			&entry.ID,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Action,
			&entry.Detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}
