package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/zadankai/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	ListenAddr                 string `env:"LISTEN_ADDR" envDefault:":8787"`
	DatabaseURL                string `env:"DATABASE_URL,required"`
	OpenAIAPIKey               string `env:"OPENAI_API_KEY,required"`
	OpenAIModel                string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	DefaultLanguage            string `env:"DEFAULT_LANGUAGE" envDefault:"en-US"`
	OpeningTurnCount           int    `env:"OPENING_TURN_COUNT" envDefault:"6"`
	ContinuationTurnCount      int    `env:"CONTINUATION_TURN_COUNT" envDefault:"4"`
	MaxConversationTurns       int    `env:"MAX_CONVERSATION_TURNS" envDefault:"40"`
	SummaryWebhookURL          string `env:"SUMMARY_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		DatabaseURL:                raw.DatabaseURL,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIModel:                raw.OpenAIModel,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		DefaultLanguage:            raw.DefaultLanguage,
		OpeningTurnCount:           raw.OpeningTurnCount,
		ContinuationTurnCount:      raw.ContinuationTurnCount,
		MaxConversationTurns:       raw.MaxConversationTurns,
		SummaryWebhookURL:          raw.SummaryWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
