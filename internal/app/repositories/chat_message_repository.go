package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batchswap/batchswap/internal/app/models"
)

// chatMessageRepository is the PostgreSQL implementation of ChatMessageRepository
type chatMessageRepository struct {
	db *pgxpool.Pool
}

// NewChatMessageRepository creates a new ChatMessageRepository
func NewChatMessageRepository(db *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

// Create inserts a new negotiation message inside tx. Runs in the same
// transaction as the share-lock on the request row so the insert cannot land
// after a terminal transition.
func (r *chatMessageRepository) Create(ctx context.Context, tx pgx.Tx, message *models.ChatMessage) (int64, error) {
	query := `
		INSERT INTO chat_messages (request_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at
	`

	err := tx.QueryRow(ctx, query,
		message.RequestID,
		message.SenderID,
		message.Body,
	).Scan(&message.ID, &message.SentAt)

	if err != nil {
		return 0, fmt.Errorf("error creating chat message: %w", err)
	}

	return message.ID, nil
}

// ListByRequest retrieves a window of the negotiation history for a swap
// request: the newest `limit` messages sent before the cursor, returned in
// ascending send order with the sender joined in. Passing the oldest returned
// timestamp as the next `before` pages backward through the full history.
func (r *chatMessageRepository) ListByRequest(ctx context.Context, requestID int64, before *time.Time, limit int) ([]*models.ChatMessage, error) {
	queryBuilder := squirrel.Select(
		"cm.id", "cm.request_id", "cm.sender_id", "cm.body", "cm.sent_at",
		"s.first_name", "s.last_name", "s.email",
	).
		From("chat_messages cm").
		Join("students s ON cm.sender_id = s.id").
		Where("cm.request_id = ?", requestID).
		OrderBy("cm.sent_at DESC", "cm.id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	if before != nil {
		queryBuilder = queryBuilder.Where("cm.sent_at < ?", *before)
	}

	sql, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var message models.ChatMessage
		var sender models.Student

		err := rows.Scan(
			&message.ID,
			&message.RequestID,
			&message.SenderID,
			&message.Body,
			&message.SentAt,
			&sender.FirstName,
			&sender.LastName,
			&sender.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat message row: %w", err)
		}

		sender.ID = message.SenderID
		message.Sender = &sender
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat message rows: %w", err)
	}

	// The query walks the newest-first index; flip to send order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
