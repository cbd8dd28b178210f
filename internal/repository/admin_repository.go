package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/veritas-ponto/veritas-api/internal/models"
)

// AdminRepository reads web mirror operator accounts.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository constructs the repository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByUsername returns one admin or sql.ErrNoRows.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	query := "SELECT id, username, password_hash FROM admins WHERE username = ?"
	if err := r.db.GetContext(ctx, &admin, query, username); err != nil {
		return nil, err
	}
	return &admin, nil
}
