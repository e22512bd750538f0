package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uis-platform/uisapi/internal/model"
)

const role2FileTypeColumns = `id, "roleGroupId", "fileTypeId"`

// Role2FileTypeRepository persists role group to file type links.
type Role2FileTypeRepository struct {
	pool *pgxpool.Pool
}

// NewRole2FileTypeRepository returns a Role2FileTypeRepository using the given pool.
func NewRole2FileTypeRepository(pool *pgxpool.Pool) *Role2FileTypeRepository {
	return &Role2FileTypeRepository{pool: pool}
}

// GetByID returns one link by id, or nil if not found.
func (r *Role2FileTypeRepository) GetByID(ctx context.Context, id int) (*model.Role2FileType, error) {
	var row model.Role2FileType
	err := r.pool.QueryRow(ctx, `
		SELECT `+role2FileTypeColumns+`
		FROM "Role2FileType" WHERE id = $1`, id).Scan(&row.ID, &row.RoleGroupID, &row.FileTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByRoleGroup returns the file types linked to a role group, ordered by id.
func (r *Role2FileTypeRepository) ListByRoleGroup(ctx context.Context, roleGroupID int) ([]model.Role2FileTypeLink, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT "roleGroupId", "fileTypeId"
		FROM "Role2FileType"
		WHERE "roleGroupId" = $1 AND "fileTypeId" IS NOT NULL
		ORDER BY id`, roleGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Role2FileTypeLink{}
	for rows.Next() {
		var link model.Role2FileTypeLink
		if err := rows.Scan(&link.RoleGroupID, &link.FileTypeID); err != nil {
			return nil, err
		}
		list = append(list, link)
	}
	return list, rows.Err()
}

// CreateLinks inserts every pair that does not exist yet, all in one
// transaction, and returns how many rows were added.
func (r *Role2FileTypeRepository) CreateLinks(ctx context.Context, links []model.Role2FileTypeLink) (int, error) {
	created := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, link := range links {
			tag, err := tx.Exec(ctx, `
				INSERT INTO "Role2FileType" ("roleGroupId", "fileTypeId")
				SELECT $1, $2
				WHERE NOT EXISTS (
					SELECT 1 FROM "Role2FileType" WHERE "roleGroupId" = $1 AND "fileTypeId" = $2
				)`, link.RoleGroupID, link.FileTypeID)
			if err != nil {
				return err
			}
			created += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Update applies the non-nil fields of u and returns the stored row, or nil
// if no row has that id.
func (r *Role2FileTypeRepository) Update(ctx context.Context, u model.Role2FileTypeUpdate) (*model.Role2FileType, error) {
	var row model.Role2FileType
	err := r.pool.QueryRow(ctx, `
		UPDATE "Role2FileType"
		SET "roleGroupId" = COALESCE($2, "roleGroupId"),
		    "fileTypeId" = COALESCE($3, "fileTypeId")
		WHERE id = $1
		RETURNING `+role2FileTypeColumns, u.ID, u.RoleGroupID, u.FileTypeID).
		Scan(&row.ID, &row.RoleGroupID, &row.FileTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// DeleteLinks removes every row matching one of the pairs in one transaction
// and returns how many rows were removed.
func (r *Role2FileTypeRepository) DeleteLinks(ctx context.Context, links []model.Role2FileTypeLink) (int, error) {
	deleted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, link := range links {
			tag, err := tx.Exec(ctx, `
				DELETE FROM "Role2FileType" WHERE "roleGroupId" = $1 AND "fileTypeId" = $2`,
				link.RoleGroupID, link.FileTypeID)
			if err != nil {
				return err
			}
			deleted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
