package chat

import (
	"context"
	"database/sql"
)

type PostgresHistoryRepo struct {
	db *sql.DB
}

func NewPostgresHistoryRepo(db *sql.DB) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{db: db}
}

func (r *PostgresHistoryRepo) Save(ctx context.Context, msg *Message) error {
	query := `INSERT INTO chat_messages (id, document_id, question, answer, response_format, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.DocumentID, msg.Question, msg.Answer, msg.ResponseFormat, msg.CreatedAt)
	return err
}

func (r *PostgresHistoryRepo) ListByDocument(ctx context.Context, documentID string) ([]Message, error) {
	query := `SELECT id, document_id, question, answer, response_format, created_at
		FROM chat_messages WHERE document_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.DocumentID, &msg.Question, &msg.Answer, &msg.ResponseFormat, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
