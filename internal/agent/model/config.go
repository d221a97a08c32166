package model

import (
	"fmt"
	"time"
)

// ================ Config ================
type ConversationConfig struct {
	TTL  string `envconfig:"CONVERSATION_TTL" default:"30m"`
	Lock struct {
		TTL  string `envconfig:"CONVERSATION_LOCK_TTL" default:"2m"`
		Wait string `envconfig:"CONVERSATION_LOCK_WAIT" default:"10s"`
	}
	Turn struct {
		// Timeout bounds one correction loop; it must be shorter than Lock.TTL.
		Timeout string `envconfig:"CONVERSATION_TURN_TIMEOUT" default:"90s"`
	}
	Correction struct {
		MaxRounds int `envconfig:"CONVERSATION_CORRECTION_MAX_ROUNDS" default:"8"`
	}
	History struct {
		MaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"20"`
	}
}

// ConversationTimings holds the parsed durations of ConversationConfig.
type ConversationTimings struct {
	TTL         time.Duration
	LockTTL     time.Duration
	LockWait    time.Duration
	TurnTimeout time.Duration
}

func (c ConversationConfig) Timings() (ConversationTimings, error) {
	var t ConversationTimings
	var err error
	if t.TTL, err = time.ParseDuration(c.TTL); err != nil {
		return t, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", c.TTL, err)
	}
	if t.LockTTL, err = time.ParseDuration(c.Lock.TTL); err != nil {
		return t, fmt.Errorf("invalid CONVERSATION_LOCK_TTL %q: %w", c.Lock.TTL, err)
	}
	if t.LockWait, err = time.ParseDuration(c.Lock.Wait); err != nil {
		return t, fmt.Errorf("invalid CONVERSATION_LOCK_WAIT %q: %w", c.Lock.Wait, err)
	}
	if t.TurnTimeout, err = time.ParseDuration(c.Turn.Timeout); err != nil {
		return t, fmt.Errorf("invalid CONVERSATION_TURN_TIMEOUT %q: %w", c.Turn.Timeout, err)
	}
	if t.TurnTimeout <= 0 || t.TurnTimeout >= t.LockTTL {
		return t, fmt.Errorf("CONVERSATION_TURN_TIMEOUT %s must be positive and shorter than CONVERSATION_LOCK_TTL %s", t.TurnTimeout, t.LockTTL)
	}
	return t, nil
}

type PlannerModelConfig struct {
	Model          string  `envconfig:"PLANNER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"PLANNER_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"PLANNER_TEMPERATURE" default:"0.1"`
	ThinkingBudget int32   `envconfig:"PLANNER_THINKING_BUDGET" default:"1024"`
	// TrackCost prices every planner call and accumulates it per turn.
	TrackCost bool `envconfig:"PLANNER_TRACK_COST" default:"true"`
}

type PromptConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"quick-service restaurant"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"Chative Burgers"`
}

type SessionStoreConfig struct {
	Backend  string `envconfig:"SESSION_BACKEND" default:"redis"`
	BoltPath string `envconfig:"SESSION_BOLT_PATH" default:"data/sessions.bolt"`
}
