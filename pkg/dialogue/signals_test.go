package dialogue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldFollowUp(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"short", "yeah", true},
		{"long without reason", "The quarter went pretty well overall and the team delivered most of the roadmap items.", true},
		{"long with reason", longAnswer, false},
		{"hedged", "I guess it went fine because nobody complained about anything in the retro meetings.", true},
		{"not sure", "Not sure really, because I joined late and missed most of the planning sessions there.", true},
		{"case insensitive because", "The launch slipped a bit BECAUSE the vendor API changed twice during the sprint.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldFollowUp(tt.answer, 50))
		})
	}
}

func TestShouldManageTime(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name    string
		elapsed int
		asked   int
		total   int
		want    bool
	}{
		{"early", 5, 0, 10, false},
		{"on schedule at 8", 8, 6, 10, false},
		{"behind at 8", 8, 2, 10, true},
		{"final minutes", 12, 10, 10, true},
		{"no questions", 9, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldManageTime(tt.elapsed, tt.asked, tt.total, cfg))
		})
	}
}

func TestElapsedMinutesFloors(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, elapsedMinutes(start, start.Add(59*time.Second)))
	assert.Equal(t, 2, elapsedMinutes(start, start.Add(2*time.Minute+59*time.Second)))
	assert.Equal(t, 0, elapsedMinutes(start, start.Add(-time.Minute)))
}

func TestPrompts(t *testing.T) {
	ictx := testContext(3)
	ictx.ParticipantRole = "engineer"
	sys := SystemPrompt(ictx)
	assert.Contains(t, sys, "You are Alex")
	assert.Contains(t, sys, "Questions available: 3")
	assert.Contains(t, sys, "1. custom question A")
	assert.Contains(t, sys, "Participant role: engineer")
	assert.Contains(t, sys, "about 20 minutes")

	open := OpeningMessage(InterviewContext{Title: "X"})
	assert.Contains(t, open, "about 15-20 minutes")
	assert.Contains(t, open, "Are you ready to begin?")

	assert.Equal(t, "Participant response: \"hi\"\n\nnext", participantPrompt("hi", "next"))
}
