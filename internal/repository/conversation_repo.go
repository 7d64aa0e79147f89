package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aozorakai/taxflow/internal/models"
	"go.uber.org/zap"
)

// ConversationRepository handles conversation routing database operations
type ConversationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *sql.DB, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		db:     db,
		logger: logger,
	}
}

const conversationColumns = `id, client_id, subject, priority, status, assigned_to, assigned_role, assigned_at, resolved_at, archived_at, created_at, updated_at`

func scanConversation(scanner interface{ Scan(...interface{}) error }) (*models.Conversation, error) {
	var conv models.Conversation
	var resolvedAt, archivedAt sql.NullTime

	err := scanner.Scan(
		&conv.ID,
		&conv.ClientID,
		&conv.Subject,
		&conv.Priority,
		&conv.Status,
		&conv.AssignedTo,
		&conv.AssignedRole,
		&conv.AssignedAt,
		&resolvedAt,
		&archivedAt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		conv.ResolvedAt = &resolvedAt.Time
	}
	if archivedAt.Valid {
		conv.ArchivedAt = &archivedAt.Time
	}

	return &conv, nil
}

// Create creates a new conversation with its initial assignment
func (r *ConversationRepository) Create(tx *sql.Tx, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (client_id, subject, priority, status, assigned_to, assigned_role, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, conv.ClientID, conv.Subject, conv.Priority, conv.Status,
			conv.AssignedTo, conv.AssignedRole, conv.AssignedAt)
	} else {
		result, err = r.db.Exec(query, conv.ClientID, conv.Subject, conv.Priority, conv.Status,
			conv.AssignedTo, conv.AssignedRole, conv.AssignedAt)
	}

	if err != nil {
		r.logger.Error("Failed to create conversation", zap.Error(err))
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	conv.ID = id
	return nil
}

// GetByID retrieves a conversation by ID. Returns nil if not found.
func (r *ConversationRepository) GetByID(id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`

	conv, err := scanConversation(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get conversation", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// ListOpen retrieves all open conversations in load order
func (r *ConversationRepository) ListOpen() ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE status = ? ORDER BY id`

	rows, err := r.db.Query(query, models.ConversationStatusOpen)
	if err != nil {
		r.logger.Error("Failed to list open conversations", zap.Error(err))
		return nil, fmt.Errorf("failed to list open conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// Reassign moves the conversation to a new assignee, resetting the
// assignment clock. A conversation has exactly one current assignee.
func (r *ConversationRepository) Reassign(tx *sql.Tx, id int64, role models.Role, assignee string, at time.Time) error {
	query := `UPDATE conversations
		SET assigned_role = ?, assigned_to = ?, assigned_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, role, assignee, at, id)
	} else {
		_, err = r.db.Exec(query, role, assignee, at, id)
	}

	if err != nil {
		r.logger.Error("Failed to reassign conversation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to reassign conversation: %w", err)
	}
	return nil
}

// Resolve transitions an OPEN conversation to the given terminal status
func (r *ConversationRepository) Resolve(tx *sql.Tx, id int64, status string, resolvedAt time.Time) error {
	query := `UPDATE conversations
		SET status = ?, resolved_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, status, resolvedAt, id, models.ConversationStatusOpen)
	} else {
		_, err = r.db.Exec(query, status, resolvedAt, id, models.ConversationStatusOpen)
	}

	if err != nil {
		r.logger.Error("Failed to resolve conversation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}
	return nil
}

// RecordEscalation writes the audit trail entry for an escalation step
func (r *ConversationRepository) RecordEscalation(tx *sql.Tx, rec *models.EscalationRecord) error {
	query := `
		INSERT INTO escalation_records (conversation_id, from_role, to_role, from_assignee, to_assignee, reason, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, rec.ConversationID, rec.FromRole, rec.ToRole,
			rec.FromAssignee, rec.ToAssignee, rec.Reason, rec.OccurredAt)
	} else {
		result, err = r.db.Exec(query, rec.ConversationID, rec.FromRole, rec.ToRole,
			rec.FromAssignee, rec.ToAssignee, rec.Reason, rec.OccurredAt)
	}

	if err != nil {
		r.logger.Error("Failed to record escalation", zap.Int64("conversation_id", rec.ConversationID), zap.Error(err))
		return fmt.Errorf("failed to record escalation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// ListEscalations returns a conversation's escalation history in order
func (r *ConversationRepository) ListEscalations(conversationID int64) ([]*models.EscalationRecord, error) {
	query := `SELECT id, conversation_id, from_role, to_role, from_assignee, to_assignee, reason, occurred_at
		FROM escalation_records WHERE conversation_id = ? ORDER BY id`

	rows, err := r.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	var records []*models.EscalationRecord
	for rows.Next() {
		var rec models.EscalationRecord
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.FromRole, &rec.ToRole,
			&rec.FromAssignee, &rec.ToAssignee, &rec.Reason, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan escalation record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// ListTerminalResolvedBefore returns unarchived RESOLVED/CLOSED conversations
// resolved before cutoff
func (r *ConversationRepository) ListTerminalResolvedBefore(cutoff time.Time) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE status IN (?, ?)
		AND archived_at IS NULL
		AND resolved_at IS NOT NULL AND resolved_at < ?
		ORDER BY id`

	rows, err := r.db.Query(query, models.ConversationStatusResolved, models.ConversationStatusClosed, cutoff)
	if err != nil {
		r.logger.Error("Failed to list terminal conversations", zap.Error(err))
		return nil, fmt.Errorf("failed to list terminal conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// Archive sets the archival timestamp without touching resolution time
func (r *ConversationRepository) Archive(id int64, archivedAt time.Time) error {
	query := `UPDATE conversations SET archived_at = ? WHERE id = ? AND archived_at IS NULL`

	if _, err := r.db.Exec(query, archivedAt, id); err != nil {
		r.logger.Error("Failed to archive conversation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	return nil
}
