package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/vendor-lens/internal/common"
	"github.com/Veraticus/vendor-lens/internal/model"
	"github.com/Veraticus/vendor-lens/internal/service"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// mappingColumns is the column list shared by every mapping query.
const mappingColumns = `id, normalized_text, original_text, mapped_name, confidence, source, IFNULL(user_id, ''), created_at, updated_at`

// FindMapping looks up an existing mapping by normalized text. A
// mapping owned by userID wins over a global mapping when both exist.
func (s *SQLiteStorage) FindMapping(ctx context.Context, normalizedText, userID string) (*model.VendorMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedText, "normalizedText"); err != nil {
		return nil, err
	}

	if mapping := s.getCachedMapping(normalizedText, userID); mapping != nil {
		return mapping, nil
	}

	// user_id IS NULL sorts after an owned row, so the user override
	// takes precedence.
	var mapping model.VendorMapping
	err := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM vendor_mappings
		WHERE normalized_text = ? AND (user_id = ? OR user_id IS NULL)
		ORDER BY user_id IS NULL
		LIMIT 1
	`, normalizedText, userID).Scan(
		&mapping.ID,
		&mapping.NormalizedText,
		&mapping.OriginalText,
		&mapping.MappedName,
		&mapping.Confidence,
		&mapping.Source,
		&mapping.UserID,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mapping: %w", err)
	}

	s.cacheMapping(userID, &mapping)

	return &mapping, nil
}

// CreateMapping inserts a new mapping row. A conflicting insert on the
// (normalized text, owner scope) unique index returns
// common.ErrDuplicateEntry so the caller can re-read the winning row.
func (s *SQLiteStorage) CreateMapping(ctx context.Context, mapping *model.VendorMapping) (*model.VendorMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateMapping(mapping); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := *mapping
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor_mappings
			(id, normalized_text, original_text, mapped_name, confidence, source, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, created.ID, created.NormalizedText, created.OriginalText, created.MappedName,
		created.Confidence, created.Source, nullableUserID(created.UserID), created.CreatedAt, created.UpdatedAt)

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: mapping for %q already exists", common.ErrDuplicateEntry, created.NormalizedText)
		}
		return nil, fmt.Errorf("failed to create mapping: %w", err)
	}

	s.invalidateMapping(created.NormalizedText)

	return &created, nil
}

// GetMapping retrieves a mapping by id.
func (s *SQLiteStorage) GetMapping(ctx context.Context, id string) (*model.VendorMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var mapping model.VendorMapping
	err := s.db.QueryRowContext(ctx, `
		SELECT `+mappingColumns+`
		FROM vendor_mappings
		WHERE id = ?
	`, id).Scan(
		&mapping.ID,
		&mapping.NormalizedText,
		&mapping.OriginalText,
		&mapping.MappedName,
		&mapping.Confidence,
		&mapping.Source,
		&mapping.UserID,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}

	return &mapping, nil
}

// UpdateMapping applies a patch to a mapping owned by userID. Global
// mappings are never user-mutable.
func (s *SQLiteStorage) UpdateMapping(ctx context.Context, id string, patch service.MappingPatch, userID string) (*model.VendorMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	existing, err := s.GetMapping(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.OwnedBy(userID) {
		return nil, fmt.Errorf("%w: mapping %s is not owned by caller", common.ErrForbidden, id)
	}

	updated := *existing
	if patch.MappedName != nil {
		updated.MappedName = *patch.MappedName
	}
	if patch.Confidence != nil {
		updated.Confidence = *patch.Confidence
	}
	if patch.Source != nil {
		updated.Source = *patch.Source
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := validateMapping(&updated); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE vendor_mappings
		SET mapped_name = ?, confidence = ?, source = ?, updated_at = ?
		WHERE id = ?
	`, updated.MappedName, updated.Confidence, updated.Source, updated.UpdatedAt, id)

	if err != nil {
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}

	s.invalidateMapping(updated.NormalizedText)

	return &updated, nil
}

// DeleteMapping removes a mapping owned by userID. Global mappings are
// never user-deletable.
func (s *SQLiteStorage) DeleteMapping(ctx context.Context, id, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	existing, err := s.GetMapping(ctx, id)
	if err != nil {
		return err
	}
	if !existing.OwnedBy(userID) {
		return fmt.Errorf("%w: mapping %s is not owned by caller", common.ErrForbidden, id)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM vendor_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return common.ErrNotFound
	}

	s.invalidateMapping(existing.NormalizedText)

	return nil
}

// ListMappings returns the caller's mappings plus global mappings.
func (s *SQLiteStorage) ListMappings(ctx context.Context, userID string) ([]model.VendorMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mappingColumns+`
		FROM vendor_mappings
		WHERE user_id = ? OR user_id IS NULL
		ORDER BY normalized_text
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.VendorMapping
	for rows.Next() {
		var mapping model.VendorMapping
		err := rows.Scan(
			&mapping.ID,
			&mapping.NormalizedText,
			&mapping.OriginalText,
			&mapping.MappedName,
			&mapping.Confidence,
			&mapping.Source,
			&mapping.UserID,
			&mapping.CreatedAt,
			&mapping.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}

	return mappings, rows.Err()
}

// nullableUserID stores an empty owner as NULL so global mappings share
// one scope under the unique index.
func nullableUserID(userID string) any {
	if userID == "" {
		return nil
	}
	return userID
}
