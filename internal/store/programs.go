package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// Programs returns the program gateway.
func (s *SQLStore) Programs() ProgramGateway {
	return s
}

// DeleteAllPrograms removes every program and returns how many were removed.
func (s *SQLStore) DeleteAllPrograms(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM programs`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete programs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted programs: %w", err)
	}

	s.logger.Debug("deleted programs", slog.Int64("count", n))
	return int(n), nil
}

// FindOrCreateProgram returns the program for the institution, CIP code and
// award level, inserting it when absent.
func (s *SQLStore) FindOrCreateProgram(ctx context.Context, institutionID int64, cipCode, level string) (*Program, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	now := nullTime{Time: s.now(), Valid: true}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO programs (institution_id, cip_code, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (institution_id, cip_code, level) DO NOTHING
	`), institutionID, cipCode, level, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create program %s/%s: %w", cipCode, level, err)
	}

	var (
		p                Program
		awards           sql.NullInt64
		created, updated nullTime
	)
	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, institution_id, cip_code, level, awards, created_at, updated_at
		FROM programs
		WHERE institution_id = ? AND cip_code = ? AND level = ?
	`), institutionID, cipCode, level).
		Scan(&p.ID, &p.InstitutionID, &p.CIPCode, &p.Level, &awards, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program %s/%s vanished after insert", cipCode, level)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program %s/%s: %w", cipCode, level, err)
	}

	if awards.Valid {
		v := awards.Int64
		p.Awards = &v
	}
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}

// SaveProgram persists the program's award count.
func (s *SQLStore) SaveProgram(ctx context.Context, p *Program) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if p == nil || p.ID == 0 {
		return errors.New("program has not been created")
	}

	var awards sql.NullInt64
	if p.Awards != nil {
		awards = sql.NullInt64{Int64: *p.Awards, Valid: true}
	}

	now := nullTime{Time: s.now(), Valid: true}
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE programs SET awards = ?, updated_at = ? WHERE id = ?`),
		awards, now, p.ID); err != nil {
		return fmt.Errorf("failed to save program %s/%s: %w", p.CIPCode, p.Level, err)
	}
	p.UpdatedAt = now.Time
	return nil
}

// listPrograms returns the programs of an institution ordered by CIP code
// and level.
func (s *SQLStore) listPrograms(ctx context.Context, institutionID int64) ([]*Program, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, institution_id, cip_code, level, awards, created_at, updated_at
		FROM programs
		WHERE institution_id = ?
		ORDER BY cip_code, level
	`), institutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var programs []*Program
	for rows.Next() {
		var (
			p                Program
			awards           sql.NullInt64
			created, updated nullTime
		)
		if err := rows.Scan(&p.ID, &p.InstitutionID, &p.CIPCode, &p.Level, &awards, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		if awards.Valid {
			v := awards.Int64
			p.Awards = &v
		}
		p.CreatedAt = created.Time
		p.UpdatedAt = updated.Time
		programs = append(programs, &p)
	}
	return programs, rows.Err()
}

var _ ProgramGateway = (*SQLStore)(nil)
