// Package metadata is the local persistence layer: engines, documents and
// ingestion tasks in one SQLite database. Pure keyed CRUD — orchestration
// lives in the usecase packages.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// documentSortColumns is the whitelist for ListDocuments ordering. Values
// outside it silently fall back to the default instead of erroring.
var documentSortColumns = map[string]string{
	"uploaded_at": "uploaded_at",
	"filename":    "filename",
	"file_size":   "file_size",
}

const (
	defaultSortColumn = "uploaded_at"
	defaultSortOrder  = "DESC"
)

// Store is the metadata store over bun.
type Store struct {
	db *bun.DB
}

// Open opens (creating if needed) the SQLite database at path and prepares
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return New(ctx, sqldb)
}

// New wraps an existing database handle and creates tables if they don't exist.
func New(ctx context.Context, sqldb *sql.DB) (*Store, error) {
	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []any{(*engineRow)(nil), (*documentRow)(nil), (*taskRow)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Engines ---

// SaveEngine persists an engine record. Inserting an engine_id that already
// exists is a no-op, matching the idempotent-success policy for creates.
func (s *Store) SaveEngine(ctx context.Context, e domain.Engine) error {
	row := engineToRow(e)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(row).
		On("CONFLICT (engine_id) DO NOTHING").
		Exec(ctx); err != nil {
		return fmt.Errorf("save engine %s: %w", e.EngineID, err)
	}
	return nil
}

// GetEngine returns the engine record or domain.ErrEngineNotFound.
func (s *Store) GetEngine(ctx context.Context, engineID string) (domain.Engine, error) {
	row := new(engineRow)
	if err := s.db.NewSelect().Model(row).Where("engine_id = ?", engineID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Engine{}, domain.ErrEngineNotFound
		}
		return domain.Engine{}, fmt.Errorf("get engine %s: %w", engineID, err)
	}
	return row.toDomain(), nil
}

// ListEngines returns all engines, newest first.
func (s *Store) ListEngines(ctx context.Context) ([]domain.Engine, error) {
	var rows []engineRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	engines := make([]domain.Engine, len(rows))
	for i := range rows {
		engines[i] = rows[i].toDomain()
	}
	return engines, nil
}

// DeleteEngine removes the engine record. Returns true if a row was deleted.
func (s *Store) DeleteEngine(ctx context.Context, engineID string) (bool, error) {
	res, err := s.db.NewDelete().Model((*engineRow)(nil)).
		Where("engine_id = ?", engineID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete engine %s: %w", engineID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OtherEnginesSharingDataStore returns the IDs of engines other than
// excludeEngineID that reference the same data store. Deletion uses this as
// the shared-resource gate.
func (s *Store) OtherEnginesSharingDataStore(
	ctx context.Context, dataStoreID, excludeEngineID string,
) ([]string, error) {
	var ids []string
	if err := s.db.NewSelect().Model((*engineRow)(nil)).
		Column("engine_id").
		Where("data_store_id = ?", dataStoreID).
		Where("engine_id != ?", excludeEngineID).
		Scan(ctx, &ids); err != nil {
		return nil, fmt.Errorf("list engines sharing data store %s: %w", dataStoreID, err)
	}
	return ids, nil
}

// --- Documents ---

// SaveDocument persists a document record.
func (s *Store) SaveDocument(ctx context.Context, d domain.Document) error {
	row := documentToRow(d)
	if row.UploadedAt.IsZero() {
		row.UploadedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(row).
		On("CONFLICT (document_id) DO UPDATE").
		Set("blob_uri = EXCLUDED.blob_uri").
		Set("file_size = EXCLUDED.file_size").
		Set("content_type = EXCLUDED.content_type").
		Set("uploaded_at = EXCLUDED.uploaded_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("save document %s: %w", d.DocumentID, err)
	}
	return nil
}

// GetDocument returns one document or domain.ErrDocumentNotFound.
func (s *Store) GetDocument(ctx context.Context, engineID, documentID string) (domain.Document, error) {
	row := new(documentRow)
	if err := s.db.NewSelect().Model(row).
		Where("engine_id = ?", engineID).
		Where("document_id = ?", documentID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return row.toDomain(), nil
}

// ListDocuments returns a page of documents for an engine. sortBy/sortOrder
// outside the whitelist fall back to uploaded_at DESC.
func (s *Store) ListDocuments(
	ctx context.Context, engineID string, limit, offset int, sortBy, sortOrder string,
) ([]domain.Document, error) {
	column, ok := documentSortColumns[sortBy]
	if !ok {
		column = defaultSortColumn
	}
	order := defaultSortOrder
	switch sortOrder {
	case "asc", "ASC":
		order = "ASC"
	case "desc", "DESC":
		order = "DESC"
	}

	q := s.db.NewSelect().Model((*documentRow)(nil)).
		Where("engine_id = ?", engineID).
		OrderExpr("? ?", bun.Ident(column), bun.Safe(order))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var rows []documentRow
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", engineID, err)
	}
	docs := make([]domain.Document, len(rows))
	for i := range rows {
		docs[i] = rows[i].toDomain()
	}
	return docs, nil
}

// ListDocumentURIs returns every stored blob URI for an engine.
func (s *Store) ListDocumentURIs(ctx context.Context, engineID string) ([]string, error) {
	var uris []string
	if err := s.db.NewSelect().Model((*documentRow)(nil)).
		Column("blob_uri").
		Where("engine_id = ?", engineID).
		Scan(ctx, &uris); err != nil {
		return nil, fmt.Errorf("list document uris for %s: %w", engineID, err)
	}
	return uris, nil
}

// CountDocuments returns the number of documents recorded for an engine.
func (s *Store) CountDocuments(ctx context.Context, engineID string) (int, error) {
	count, err := s.db.NewSelect().Model((*documentRow)(nil)).
		Where("engine_id = ?", engineID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents for %s: %w", engineID, err)
	}
	return count, nil
}

// DeleteDocument removes one document record. Returns true if a row was deleted.
func (s *Store) DeleteDocument(ctx context.Context, engineID, documentID string) (bool, error) {
	res, err := s.db.NewDelete().Model((*documentRow)(nil)).
		Where("engine_id = ?", engineID).
		Where("document_id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteDocumentsForEngine removes all document records for an engine and
// returns how many were removed.
func (s *Store) DeleteDocumentsForEngine(ctx context.Context, engineID string) (int, error) {
	res, err := s.db.NewDelete().Model((*documentRow)(nil)).
		Where("engine_id = ?", engineID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete documents for %s: %w", engineID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- Tasks ---

// CreateTask persists a new task record.
func (s *Store) CreateTask(ctx context.Context, t domain.Task) error {
	if _, err := s.db.NewInsert().Model(taskToRow(t)).Exec(ctx); err != nil {
		return fmt.Errorf("create task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTask returns one task or domain.ErrTaskNotFound.
func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	row := new(taskRow)
	if err := s.db.NewSelect().Model(row).Where("task_id = ?", taskID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return row.toDomain(), nil
}

// ListTasks returns all tasks, newest first. Tasks are retained as audit
// history, so the list only grows.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var rows []taskRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]domain.Task, len(rows))
	for i := range rows {
		tasks[i] = rows[i].toDomain()
	}
	return tasks, nil
}

// UpdateTaskStatus transitions a task, refreshing updated_at on every write.
func (s *Store) UpdateTaskStatus(
	ctx context.Context, taskID string, status domain.TaskStatus, result, errorMessage string,
) error {
	res, err := s.db.NewUpdate().Model((*taskRow)(nil)).
		Set("status = ?", string(status)).
		Set("result = ?", result).
		Set("error_message = ?", errorMessage).
		Set("updated_at = ?", time.Now().UTC()).
		Where("task_id = ?", taskID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}
