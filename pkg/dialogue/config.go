package dialogue

import "time"

// Config holds the conductor's pacing rules.
type Config struct {
	OpeningMaxTokens  int     `yaml:"opening_max_tokens"`
	ResponseMaxTokens int     `yaml:"response_max_tokens"`
	Temperature       float64 `yaml:"temperature"`

	// FollowUpBudget is the number of follow-ups allowed per question.
	FollowUpBudget int `yaml:"follow_up_budget"`
	// ShortAnswerChars marks answers shorter than this as needing a follow-up.
	ShortAnswerChars int `yaml:"short_answer_chars"`

	// ExpectedMinutes is the planned interview length used for pacing.
	ExpectedMinutes int `yaml:"expected_minutes"`
	// BehindScheduleMinute is when pacing checks start.
	BehindScheduleMinute int `yaml:"behind_schedule_minute"`
	// FinalMinutesMinute always triggers time management.
	FinalMinutesMinute int `yaml:"final_minutes_minute"`
	// ScheduleSlack is how far expected progress may run ahead of actual.
	ScheduleSlack float64 `yaml:"schedule_slack"`

	// SoftLimitMinutes ends the interview once MinResponses were recorded.
	SoftLimitMinutes int `yaml:"soft_limit_minutes"`
	MinResponses     int `yaml:"min_responses"`
	// HardLimitMinutes ends the interview unconditionally.
	HardLimitMinutes int `yaml:"hard_limit_minutes"`

	LLMTimeout time.Duration `yaml:"llm_timeout"`
	// MaxHistory bounds the user/assistant messages sent to the model.
	MaxHistory int `yaml:"max_history"`
}

// DefaultConfig returns a 15-20 minute interview plan.
func DefaultConfig() Config {
	return Config{
		OpeningMaxTokens:     200,
		ResponseMaxTokens:    150,
		Temperature:          0.7,
		FollowUpBudget:       2,
		ShortAnswerChars:     50,
		ExpectedMinutes:      15,
		BehindScheduleMinute: 8,
		FinalMinutesMinute:   12,
		ScheduleSlack:        1.5,
		SoftLimitMinutes:     15,
		MinResponses:         3,
		HardLimitMinutes:     20,
		LLMTimeout:           15 * time.Second,
		MaxHistory:           20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OpeningMaxTokens <= 0 {
		c.OpeningMaxTokens = d.OpeningMaxTokens
	}
	if c.ResponseMaxTokens <= 0 {
		c.ResponseMaxTokens = d.ResponseMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = d.Temperature
	}
	if c.FollowUpBudget < 0 {
		c.FollowUpBudget = 0
	}
	if c.ShortAnswerChars <= 0 {
		c.ShortAnswerChars = d.ShortAnswerChars
	}
	if c.ExpectedMinutes <= 0 {
		c.ExpectedMinutes = d.ExpectedMinutes
	}
	if c.BehindScheduleMinute <= 0 {
		c.BehindScheduleMinute = d.BehindScheduleMinute
	}
	if c.FinalMinutesMinute <= 0 {
		c.FinalMinutesMinute = d.FinalMinutesMinute
	}
	if c.ScheduleSlack <= 0 {
		c.ScheduleSlack = d.ScheduleSlack
	}
	if c.SoftLimitMinutes <= 0 {
		c.SoftLimitMinutes = d.SoftLimitMinutes
	}
	if c.MinResponses <= 0 {
		c.MinResponses = d.MinResponses
	}
	if c.HardLimitMinutes <= 0 {
		c.HardLimitMinutes = d.HardLimitMinutes
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = d.LLMTimeout
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = d.MaxHistory
	}
	return c
}
