package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE meeting_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS meetings (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		topic TEXT NOT NULL,
		language TEXT NOT NULL,
		characters JSONB NOT NULL DEFAULT '[]'::jsonb,
		conversation JSONB NOT NULL DEFAULT '[]'::jsonb,
		status meeting_status NOT NULL DEFAULT 'running',
		hand_raised BOOLEAN NOT NULL DEFAULT FALSE,
		human_name TEXT NOT NULL DEFAULT '',
		already_invited BOOLEAN NOT NULL DEFAULT FALSE,
		revision BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_running ON meetings (created_at) WHERE status = 'running'`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
