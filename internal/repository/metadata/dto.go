package metadata

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// engineRow is the bun model for the engines table.
type engineRow struct {
	bun.BaseModel `bun:"table:engines,alias:e"`

	ID          int64     `bun:",pk,autoincrement"`
	EngineID    string    `bun:",unique,notnull"`
	EngineName  string    `bun:",notnull"`
	DataStoreID string    `bun:",notnull"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// documentRow is the bun model for the documents table. engine_id logically
// references engines.engine_id; no FK is enforced because deletion of the two
// is deliberately independent.
type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID          int64     `bun:",pk,autoincrement"`
	DocumentID  string    `bun:",unique,notnull"`
	EngineID    string    `bun:",notnull"`
	DataStoreID string    `bun:",notnull"`
	Filename    string    `bun:",notnull"`
	BlobURI     string    `bun:",notnull"`
	FileSize    int64     `bun:",nullzero"`
	ContentType string    `bun:",nullzero"`
	UploadedAt  time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// taskRow is the bun model for the tasks table.
type taskRow struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID           int64     `bun:",pk,autoincrement"`
	TaskID       string    `bun:",unique,notnull"`
	Filename     string    `bun:",notnull"`
	Status       string    `bun:",notnull"`
	Result       string    `bun:",nullzero"`
	ErrorMessage string    `bun:",nullzero"`
	CreatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (r *engineRow) toDomain() domain.Engine {
	return domain.Engine{
		EngineID:    r.EngineID,
		EngineName:  r.EngineName,
		DataStoreID: r.DataStoreID,
		CreatedAt:   r.CreatedAt,
	}
}

func engineToRow(e domain.Engine) *engineRow {
	return &engineRow{
		EngineID:    e.EngineID,
		EngineName:  e.EngineName,
		DataStoreID: e.DataStoreID,
		CreatedAt:   e.CreatedAt,
	}
}

func (r *documentRow) toDomain() domain.Document {
	return domain.Document{
		DocumentID:  r.DocumentID,
		EngineID:    r.EngineID,
		DataStoreID: r.DataStoreID,
		Filename:    r.Filename,
		BlobURI:     r.BlobURI,
		FileSize:    r.FileSize,
		ContentType: r.ContentType,
		UploadedAt:  r.UploadedAt,
	}
}

func documentToRow(d domain.Document) *documentRow {
	return &documentRow{
		DocumentID:  d.DocumentID,
		EngineID:    d.EngineID,
		DataStoreID: d.DataStoreID,
		Filename:    d.Filename,
		BlobURI:     d.BlobURI,
		FileSize:    d.FileSize,
		ContentType: d.ContentType,
		UploadedAt:  d.UploadedAt,
	}
}

func (r *taskRow) toDomain() domain.Task {
	return domain.Task{
		TaskID:       r.TaskID,
		Filename:     r.Filename,
		Status:       domain.TaskStatus(r.Status),
		Result:       r.Result,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func taskToRow(t domain.Task) *taskRow {
	return &taskRow{
		TaskID:       t.TaskID,
		Filename:     t.Filename,
		Status:       string(t.Status),
		Result:       t.Result,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}
