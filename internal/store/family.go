package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/choreboard/choreboard/internal/model"
)

type FamilyStore struct {
	db DBTX
}

func NewFamilyStore(db DBTX) *FamilyStore {
	return &FamilyStore{db: db}
}

const familyCols = `id, name, join_code, admin_email, created_at, updated_at`

func scanFamily(s scanner) (*model.Family, error) {
	var f model.Family
	if err := s.Scan(&f.ID, &f.Name, &f.JoinCode, &f.AdminEmail, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *FamilyStore) Create(ctx context.Context, name, joinCode, adminEmail string, now time.Time) (*model.Family, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO families (name, join_code, admin_email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, joinCode, adminEmail, now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *FamilyStore) GetByID(ctx context.Context, id int64) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) GetByJoinCode(ctx context.Context, code string) (*model.Family, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+familyCols+` FROM families WHERE join_code = ?`, code)
	f, err := scanFamily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family by join code: %w", err)
	}
	return f, nil
}

func (s *FamilyStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}
