// Package docstore implements the workflow document store on SQLite.
// Documents live as JSON bodies in a single table; updates have merge
// semantics (named fields replaced, arrays replaced wholesale) and are
// guarded by a per-document version counter.
package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shwehr/approval-engine/internal/application/port"
)

// Store implements port.WorkflowStore
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a new document store
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// jsonPath converts a dot-separated field name to a SQLite JSON path.
// Field names come from code, not users, but are validated anyway since
// they are interpolated into SQL.
func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return "$." + field, nil
}

// Create persists a new document and returns the assigned id
func (s *Store) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	body, err := normalize(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	body["id"] = id

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, version, body) VALUES (?, ?, 1, ?)`,
		collection, id, string(raw),
	)
	if err != nil {
		s.logger.Error("Failed to create document",
			zap.String("collection", collection),
			zap.Error(err))
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	return id, nil
}

// Get loads a document into out and returns its version
func (s *Store) Get(ctx context.Context, collection, id string, out interface{}) (int64, error) {
	var raw string
	var version int64

	err := s.db.QueryRowContext(ctx,
		`SELECT body, version FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw, &version)

	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%s/%s: %w", collection, id, port.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to get document",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err))
		return 0, fmt.Errorf("failed to get document: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return 0, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}

	return version, nil
}

// Update merges the named fields into the stored document if its version
// still equals expectedVersion. Pass expectedVersion 0 to skip the check.
func (s *Store) Update(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error {
	patch, err := normalize(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT body, version FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s/%s: %w", collection, id, port.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read document for update: %w", err)
	}

	if expectedVersion > 0 && version != expectedVersion {
		return fmt.Errorf("%s/%s: expected version %d, found %d: %w",
			collection, id, expectedVersion, version, port.ErrVersionConflict)
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}

	// Merge semantics: named fields replaced wholesale, others untouched
	for k, v := range patch {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}

	merged, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE documents SET body = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND id = ? AND version = ?`,
		string(merged), collection, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, port.ErrVersionConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	return nil
}

// Query loads matching documents, ordered, into out (a pointer to a slice)
func (s *Store) Query(ctx context.Context, collection string, q port.Query, out interface{}) error {
	var sb strings.Builder
	sb.WriteString(`SELECT body FROM documents WHERE collection = ?`)
	args := []interface{}{collection}

	for _, f := range q.Filters {
		path, err := jsonPath(f.Field)
		if err != nil {
			return err
		}
		value, err := normalizeValue(f.Value)
		if err != nil {
			return fmt.Errorf("failed to encode filter value for %s: %w", f.Field, err)
		}
		sb.WriteString(fmt.Sprintf(` AND json_extract(body, '%s') = ?`, path))
		args = append(args, value)
	}

	if q.OrderBy != "" {
		path, err := jsonPath(q.OrderBy)
		if err != nil {
			return err
		}
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		sb.WriteString(fmt.Sprintf(` ORDER BY json_extract(body, '%s') %s`, path, direction))
	}

	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		s.logger.Error("Failed to query documents",
			zap.String("collection", collection),
			zap.Error(err))
		return fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var bodies [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		bodies = append(bodies, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to query documents: %w", err)
	}

	// Decode all bodies in one pass as a JSON array
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range bodies {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(b)
	}
	buf.WriteByte(']')

	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode query results: %w", err)
	}

	return nil
}

// normalize round-trips a value through JSON so times, structs and slices
// land in their stored representation (RFC 3339 strings, maps, arrays)
// before merging or comparing.
func normalize(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func normalizeValue(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, string, bool, int, int64, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
