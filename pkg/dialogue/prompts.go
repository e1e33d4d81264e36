package dialogue

import (
	"fmt"
	"strings"
)

const personaPrompt = `You are Alex, a warm and conversational interviewer collecting feedback through a live voice conversation.

Personality:
- Friendly, curious and professional; make the participant feel heard.
- Acknowledge what was said before moving on.

Speech style:
- Your words are spoken aloud. Use short, natural sentences and no lists, markdown or emoji.
- Ask exactly one question at a time.
- Keep each reply under three sentences unless you are closing the interview.

Flow:
- Work through the planned questions in order.
- When an answer is vague, ask for a concrete example before moving on.
- Transition smoothly between topics and keep an eye on the time.

Constraints:
- Never invent facts about the participant or the subject.
- Stay on the interview topic and politely steer back if the conversation drifts.`

const openingInstruction = "Please start the interview with your opening message."

const (
	promptFollowUp  = "This response could benefit from a follow-up question for more specificity."
	promptNext      = "Move to the next question with a smooth transition."
	promptWrapUp    = "Wrap up the interview with closing remarks."
	promptNextLabel = "Next question to ask"
	promptCurrent   = "Current question"
)

// apologyReply is spoken whenever the model call fails.
const apologyReply = "I apologize, but I'm having a brief technical issue. Could you please repeat your last response?"

// closingReply is spoken when wrap-up produced no text.
const closingReply = "Thank you so much for sharing your thoughts today. Your feedback is genuinely valuable and will help a lot. Have a wonderful rest of your day!"

var transitionPhrases = []string{
	"That's really helpful, thank you. Let's move on to the next topic.",
	"Thanks for sharing that. I'd like to ask you about something else now.",
	"I appreciate that perspective. Let's talk about another area.",
	"That's great insight. Moving on to our next question.",
	"Thank you, that's very useful. Let me ask you about something different.",
}

var followUpPhrases = map[string][]string{
	"specific": {
		"Could you give me a specific example of that?",
		"Can you walk me through a particular situation where you saw this?",
		"What does that look like in practice?",
	},
	"impact": {
		"How did that affect you or your work?",
		"What impact did that have on the team?",
		"What changed as a result of that?",
	},
	"improvement": {
		"What could be done differently next time?",
		"If you could change one thing about that, what would it be?",
		"What would make that work better?",
	},
	"strengths": {
		"What do you think worked particularly well there?",
		"What would you like to see more of?",
		"What stood out to you as a real strength?",
	},
}

var recoveryPhrases = map[RecoveryKind][]string{
	RecoveryUnclear: {
		"I want to make sure I understand correctly. Could you rephrase that?",
		"Sorry, I didn't quite catch that. Could you say it another way?",
		"Could you tell me a bit more about what you mean?",
	},
	RecoveryTechnical: {
		"I think there might have been a connection issue. Could you repeat that?",
		"Sorry, I missed part of that. Would you mind saying it again?",
		"It seems the audio cut out for a moment. Could you repeat your last point?",
	},
	RecoverySilence: {
		"Take your time to think about that.",
		"No rush at all. Whenever you're ready.",
		"Would it help if I rephrased the question?",
	},
}

// halfwayCheck is appended to the prompt when pacing falls behind.
func halfwayCheck(remaining int) string {
	return fmt.Sprintf("We're about halfway through our time. I have %d more key questions to cover. Your insights so far have been very valuable.", remaining)
}

const finalMinutes = "We have just a few minutes left. Let me ask about the most important aspects."

// SystemPrompt renders the persona plus the interview plan.
func SystemPrompt(c InterviewContext) string {
	var b strings.Builder
	b.WriteString(personaPrompt)
	b.WriteString("\n\nInterview context:\n")
	fmt.Fprintf(&b, "- Session title: %s\n", c.Title)
	fmt.Fprintf(&b, "- Focus areas: %s\n", strings.Join(c.FocusTopics, ", "))
	if c.ParticipantRole != "" {
		fmt.Fprintf(&b, "- Participant role: %s\n", c.ParticipantRole)
	}
	if c.Relationship != "" {
		fmt.Fprintf(&b, "- Relationship to the subject: %s\n", c.Relationship)
	}
	questions := c.Questions()
	fmt.Fprintf(&b, "- Questions available: %d\n", len(questions))
	fmt.Fprintf(&b, "- Time limit: %s\n", timeBudgetLabel(c.TimeBudgetMinutes))
	if len(questions) > 0 {
		b.WriteString("\nPlanned questions:\n")
		for i, q := range questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	return b.String()
}

// OpeningMessage is the scripted greeting used when the model is unavailable.
func OpeningMessage(c InterviewContext) string {
	topics := "the areas we planned"
	if len(c.FocusTopics) > 0 {
		topics = strings.Join(c.FocusTopics, ", ")
	}
	return fmt.Sprintf("Hello! I'm Alex, and I'll be guiding our feedback session about %s today. "+
		"This should take %s, and I have %d questions focusing on %s. "+
		"There are no right or wrong answers, I'm just interested in your honest perspective. Are you ready to begin?",
		c.Title, timeBudgetLabel(c.TimeBudgetMinutes), len(c.Questions()), topics)
}

func timeBudgetLabel(minutes int) string {
	if minutes <= 0 {
		return "about 15-20 minutes"
	}
	return fmt.Sprintf("about %d minutes", minutes)
}

// participantPrompt is the user turn sent to the model for one answer.
func participantPrompt(answer, instruction string) string {
	return fmt.Sprintf("Participant response: %q\n\n%s", answer, instruction)
}
