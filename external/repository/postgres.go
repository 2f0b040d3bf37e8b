package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foxseedlab/zadankai/internal/conversation"
	"github.com/foxseedlab/zadankai/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateMeeting(ctx context.Context, input repository.CreateMeetingInput) (*repository.Meeting, error) {
	characters, err := json.Marshal(input.Characters)
	if err != nil {
		return nil, fmt.Errorf("marshal characters: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO meetings (topic, language, characters, conversation, status)
		 VALUES ($1, $2, $3, '[]'::jsonb, 'running')
		 RETURNING id, topic, language, characters, conversation, status,
		           hand_raised, human_name, already_invited, revision, created_at, updated_at`,
		input.Topic, input.Language, characters)
	return scanMeeting(row)
}

func (r *PostgresRepository) GetMeeting(ctx context.Context, meetingID string) (*repository.Meeting, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, topic, language, characters, conversation, status,
		        hand_raised, human_name, already_invited, revision, created_at, updated_at
		 FROM meetings WHERE id = $1`,
		meetingID)
	m, err := scanMeeting(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) SaveMeeting(ctx context.Context, input repository.SaveMeetingInput) (int64, error) {
	convo, err := json.Marshal(input.Conversation)
	if err != nil {
		return 0, fmt.Errorf("marshal conversation: %w", err)
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE meetings
		 SET conversation = $2, hand_raised = $3, human_name = $4,
		     already_invited = $5, revision = revision + 1, updated_at = NOW()
		 WHERE id = $1 AND revision = $6
		 RETURNING revision`,
		input.MeetingID, convo, input.HandRaised, input.HumanName,
		input.AlreadyInvited, input.ExpectedRevision)
	var revision int64
	if err := row.Scan(&revision); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrRevisionConflict
		}
		return 0, err
	}
	return revision, nil
}

func (r *PostgresRepository) UpdateMeetingCompleted(ctx context.Context, input repository.CompleteMeetingInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE meetings SET status = 'completed', updated_at = NOW() WHERE id = $1`,
		input.MeetingID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*repository.Meeting, error) {
	var (
		m               repository.Meeting
		charactersJSON  []byte
		conversationRaw []byte
		updatedAt       time.Time
	)
	err := row.Scan(&m.ID, &m.Topic, &m.Language, &charactersJSON, &conversationRaw,
		&m.Status, &m.HandRaised, &m.HumanName, &m.AlreadyInvited, &m.Revision,
		&m.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.UpdatedAt = updatedAt
	if err := json.Unmarshal(charactersJSON, &m.Characters); err != nil {
		return nil, fmt.Errorf("unmarshal characters: %w", err)
	}
	if len(conversationRaw) > 0 {
		var convo []conversation.Message
		if err := json.Unmarshal(conversationRaw, &convo); err != nil {
			return nil, fmt.Errorf("unmarshal conversation: %w", err)
		}
		m.Conversation = convo
	}
	return &m, nil
}
