package dialogue

import (
	"strings"
	"time"
)

var hedges = []string{"i guess", "not sure"}

// ShouldFollowUp reports whether an answer is too thin to move on from:
// short, without a reason given, or hedged.
func ShouldFollowUp(answer string, shortAnswerChars int) bool {
	text := strings.ToLower(strings.TrimSpace(answer))
	if len([]rune(text)) < shortAnswerChars {
		return true
	}
	if !strings.Contains(text, "because") {
		return true
	}
	for _, h := range hedges {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}

// followUpCategory picks which follow-up pool suits the answer.
func followUpCategory(answer string, shortAnswerChars int) string {
	text := strings.ToLower(answer)
	for _, h := range hedges {
		if strings.Contains(text, h) {
			return "specific"
		}
	}
	if len([]rune(strings.TrimSpace(text))) < shortAnswerChars {
		return "specific"
	}
	return "impact"
}

// ShouldManageTime reports whether pacing needs attention: behind schedule
// after the check point, or in the final minutes regardless.
func ShouldManageTime(elapsedMinutes, asked, total int, cfg Config) bool {
	if elapsedMinutes >= cfg.FinalMinutesMinute {
		return true
	}
	if elapsedMinutes < cfg.BehindScheduleMinute {
		return false
	}
	expected := float64(elapsedMinutes) / float64(cfg.ExpectedMinutes)
	actual := 1.0
	if total > 0 {
		actual = float64(asked) / float64(total)
	}
	return expected > actual*cfg.ScheduleSlack
}

// elapsedMinutes floors the time since start to whole minutes.
func elapsedMinutes(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
