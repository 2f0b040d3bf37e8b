package config

import "fmt"

type Config struct {
	Env                        string
	ListenAddr                 string
	DatabaseURL                string
	OpenAIAPIKey               string
	OpenAIModel                string
	GoogleCloudCredentialsJSON string
	DefaultLanguage            string
	OpeningTurnCount           int
	ContinuationTurnCount      int
	MaxConversationTurns       int
	SummaryWebhookURL          string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.OpeningTurnCount <= 0 {
		return fmt.Errorf("OPENING_TURN_COUNT must be positive, got %d", c.OpeningTurnCount)
	}
	if c.ContinuationTurnCount <= 0 {
		return fmt.Errorf("CONTINUATION_TURN_COUNT must be positive, got %d", c.ContinuationTurnCount)
	}
	if c.MaxConversationTurns < c.OpeningTurnCount {
		return fmt.Errorf("MAX_CONVERSATION_TURNS must be at least OPENING_TURN_COUNT, got %d", c.MaxConversationTurns)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "OPENAI_API_KEY", value: c.OpenAIAPIKey},
		{name: "OPENAI_MODEL", value: c.OpenAIModel},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "DEFAULT_LANGUAGE", value: c.DefaultLanguage},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
