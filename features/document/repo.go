package document

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (id, filename, file_path, file_size, status, page_count, chunk_count, error_message, upload_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			page_count = EXCLUDED.page_count,
			chunk_count = EXCLUDED.chunk_count,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.FilePath, doc.FileSize, string(doc.Status),
		doc.PageCount, doc.ChunkCount, nullable(doc.ErrorMessage), doc.UploadDate)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Document, error) {
	query := `SELECT id, filename, file_path, file_size, status, page_count, chunk_count, error_message, upload_date, updated_at
		FROM documents WHERE id = $1`
	doc := &Document{}
	var status string
	var errMsg sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Filename, &doc.FilePath, &doc.FileSize, &status,
		&doc.PageCount, &doc.ChunkCount, &errMsg, &doc.UploadDate, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.Status = Status(status)
	doc.ErrorMessage = errMsg.String
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT id, filename, file_path, file_size, status, page_count, chunk_count, error_message, upload_date, updated_at
		FROM documents ORDER BY upload_date DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var status string
		var errMsg sql.NullString
		var uploadDate, updatedAt time.Time
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FilePath, &doc.FileSize, &status,
			&doc.PageCount, &doc.ChunkCount, &errMsg, &uploadDate, &updatedAt); err != nil {
			return nil, err
		}
		doc.Status = Status(status)
		doc.ErrorMessage = errMsg.String
		doc.UploadDate = uploadDate
		doc.UpdatedAt = updatedAt
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
