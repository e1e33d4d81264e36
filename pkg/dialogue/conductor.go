package dialogue

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// Option customizes a Conductor.
type Option func(*Conductor)

// WithConfig replaces the pacing rules.
func WithConfig(cfg Config) Option {
	return func(c *Conductor) {
		c.cfg = cfg.withDefaults()
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Conductor) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRand injects the source used to pick scripted phrases.
func WithRand(r *rand.Rand) Option {
	return func(c *Conductor) {
		if r != nil {
			c.rng = r
		}
	}
}

// Conductor runs the question plan of one interview. It is safe for
// concurrent use; model calls run without holding the state lock.
type Conductor struct {
	ictx  InterviewContext
	model LanguageModel
	cfg   Config
	now   func() time.Time

	mu           sync.Mutex
	rng          *rand.Rand
	state        ConversationState
	total        int
	systemPrompt string
	history      []Message
	latched      bool
}

// NewConductor prepares an interview. The clock starts now.
func NewConductor(ictx InterviewContext, model LanguageModel, opts ...Option) *Conductor {
	c := &Conductor{
		model: model,
		cfg:   DefaultConfig(),
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x1d)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.ictx = InterviewContext{
		Title:              ictx.Title,
		FocusTopics:        append([]string(nil), ictx.FocusTopics...),
		CustomQuestions:    append([]string(nil), ictx.CustomQuestions...),
		GeneratedQuestions: append([]string(nil), ictx.GeneratedQuestions...),
		ParticipantRole:    ictx.ParticipantRole,
		Relationship:       ictx.Relationship,
		TimeBudgetMinutes:  ictx.TimeBudgetMinutes,
	}
	questions := c.ictx.Questions()
	c.total = len(questions)
	c.state = ConversationState{
		QuestionsAsked:     make([]string, 0, len(questions)),
		QuestionsRemaining: questions,
		StartTime:          c.now(),
	}
	c.systemPrompt = SystemPrompt(c.ictx)
	return c
}

// Context returns the interview description.
func (c *Conductor) Context() InterviewContext {
	return c.ictx
}

// GetOpeningMessage asks the model for a greeting and falls back to the
// scripted opening. It never fails.
func (c *Conductor) GetOpeningMessage(ctx context.Context) string {
	c.mu.Lock()
	messages := []Message{
		{Role: RoleSystem, Content: c.systemPrompt},
		{Role: RoleUser, Content: openingInstruction},
	}
	c.mu.Unlock()

	reply, err := c.complete(ctx, "opening", messages, c.cfg.OpeningMaxTokens)
	if err != nil || reply == "" {
		if err != nil {
			log.Printf("[Conductor] opening generation failed, using script: %v", err)
		}
		reply = OpeningMessage(c.ictx)
	}

	c.mu.Lock()
	c.appendHistory(Message{Role: RoleUser, Content: openingInstruction})
	c.appendHistory(Message{Role: RoleAssistant, Content: reply})
	c.mu.Unlock()
	return reply
}

// ProcessResponse records a participant answer, decides between a follow-up,
// the next question and wrap-up, and returns the reply to speak. Model
// failures yield a fixed apology; the state still advances.
func (c *Conductor) ProcessResponse(ctx context.Context, answer string) string {
	answer = strings.TrimSpace(answer)

	c.mu.Lock()
	now := c.now()
	elapsed := elapsedMinutes(c.state.StartTime, now)

	pending := len(c.state.QuestionsAsked) > 0
	if pending {
		c.state.Responses = append(c.state.Responses, Response{
			Question:  c.state.QuestionsAsked[len(c.state.QuestionsAsked)-1],
			Text:      answer,
			Timestamp: now,
		})
	}

	followUp := pending && ShouldFollowUp(answer, c.cfg.ShortAnswerChars)
	timing := c.timeInstructionLocked(elapsed)

	var action Action
	var instruction string
	switch {
	case followUp && c.state.FollowUpCount < c.cfg.FollowUpBudget:
		c.state.FollowUpCount++
		action = ActionFollowUp
		instruction = c.followUpInstruction(answer)
	case len(c.state.QuestionsRemaining) > 0:
		action = ActionNextQuestion
		instruction = c.nextQuestionInstructionLocked()
	default:
		action = ActionWrapUp
		instruction = promptWrapUp
	}
	instruction += timing

	c.appendHistory(Message{Role: RoleUser, Content: participantPrompt(answer, instruction)})
	messages := c.messagesLocked()
	asked := len(c.state.QuestionsAsked)
	c.mu.Unlock()

	log.Printf("[Conductor] action=%s elapsed=%dm asked=%d/%d", action, elapsed, asked, c.total)
	return c.reply(ctx, action, messages)
}

// SkipToNextQuestion moves on without recording an answer, or wraps up when
// no questions remain.
func (c *Conductor) SkipToNextQuestion(ctx context.Context) string {
	c.mu.Lock()
	timing := c.timeInstructionLocked(elapsedMinutes(c.state.StartTime, c.now()))

	action := ActionWrapUp
	instruction := promptWrapUp
	if len(c.state.QuestionsRemaining) > 0 {
		action = ActionNextQuestion
		instruction = c.nextQuestionInstructionLocked()
	}
	instruction += timing
	c.appendHistory(Message{Role: RoleUser, Content: "The participant asked to move on.\n\n" + instruction})
	messages := c.messagesLocked()
	c.mu.Unlock()

	return c.reply(ctx, action, messages)
}

// HandleRecovery returns a scripted phrase for a conversational hiccup.
func (c *Conductor) HandleRecovery(kind RecoveryKind) string {
	pool, ok := recoveryPhrases[kind]
	if !ok {
		pool = recoveryPhrases[RecoveryUnclear]
	}
	return c.pick(pool)
}

// IsInterviewComplete reports whether the interview should end. Once true it
// stays true.
func (c *Conductor) IsInterviewComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCompleteLocked()
}

func (c *Conductor) isCompleteLocked() bool {
	if c.latched {
		return true
	}
	elapsed := elapsedMinutes(c.state.StartTime, c.now())
	if len(c.state.QuestionsRemaining) == 0 ||
		elapsed >= c.cfg.HardLimitMinutes ||
		(elapsed >= c.cfg.SoftLimitMinutes && len(c.state.Responses) >= c.cfg.MinResponses) {
		c.latched = true
	}
	return c.latched
}

// GetInterviewSummary reports progress so far.
func (c *Conductor) GetInterviewSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	completion := 100
	if c.total > 0 {
		completion = int(math.Round(float64(len(c.state.QuestionsAsked)) / float64(c.total) * 100))
	}
	return Summary{
		Duration:        now.Sub(c.state.StartTime),
		DurationMinutes: elapsedMinutes(c.state.StartTime, now),
		QuestionsAsked:  len(c.state.QuestionsAsked),
		Responses:       len(c.state.Responses),
		Completion:      completion,
	}
}

// State returns a copy of the conversation state.
func (c *Conductor) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// TotalQuestions is the size of the question plan.
func (c *Conductor) TotalQuestions() int {
	return c.total
}

// timeInstructionLocked is the pacing note appended to every turn's
// instruction, or empty when pacing needs no comment. It reads the plan
// before the turn advances it.
func (c *Conductor) timeInstructionLocked(elapsed int) string {
	if !ShouldManageTime(elapsed, len(c.state.QuestionsAsked), c.total, c.cfg) {
		return ""
	}
	if elapsed >= c.cfg.FinalMinutesMinute {
		return "\n" + finalMinutes
	}
	return "\n" + halfwayCheck(len(c.state.QuestionsRemaining))
}

func (c *Conductor) nextQuestionInstructionLocked() string {
	q := c.state.QuestionsRemaining[0]
	c.state.QuestionsRemaining = c.state.QuestionsRemaining[1:]
	c.state.QuestionsAsked = append(c.state.QuestionsAsked, q)
	c.state.FollowUpCount = 0

	return fmt.Sprintf("%s\n%s: %s", promptNext, promptNextLabel, q)
}

func (c *Conductor) followUpInstruction(answer string) string {
	current := c.state.QuestionsAsked[len(c.state.QuestionsAsked)-1]
	hint := c.pickLocked(followUpPhrases[followUpCategory(answer, c.cfg.ShortAnswerChars)])
	return fmt.Sprintf("%s\n%s: %s\nYou might ask something like: %s", promptFollowUp, promptCurrent, current, hint)
}

// reply runs the model call and records the spoken text.
func (c *Conductor) reply(ctx context.Context, action Action, messages []Message) string {
	ctx, span := trace.InstrumentConductorAction(ctx, action.String())
	defer span.End()

	text, err := c.complete(ctx, action.String(), messages, c.cfg.ResponseMaxTokens)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil:
		trace.RecordError(span, err)
		log.Printf("[Conductor] %s generation failed: %v", action, err)
		text = apologyReply
	case text == "" && action == ActionWrapUp:
		text = closingReply
	case text == "" && action == ActionFollowUp:
		text = c.pickLocked(followUpPhrases["specific"])
	case text == "":
		text = c.pickLocked(transitionPhrases)
	}
	c.appendHistory(Message{Role: RoleAssistant, Content: text})
	return text
}

func (c *Conductor) complete(ctx context.Context, purpose string, messages []Message, maxTokens int) (string, error) {
	if c.model == nil {
		return "", fmt.Errorf("no language model configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.model.Complete(ctx, CompletionRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion via %s: %w", purpose, c.model.Name(), err)
	}
	log.Printf("[Conductor] %s completion in %v", purpose, time.Since(start))
	return strings.TrimSpace(text), nil
}

// messagesLocked returns the system prompt plus bounded history.
func (c *Conductor) messagesLocked() []Message {
	out := make([]Message, 0, len(c.history)+1)
	out = append(out, Message{Role: RoleSystem, Content: c.systemPrompt})
	return append(out, c.history...)
}

func (c *Conductor) appendHistory(m Message) {
	c.history = append(c.history, m)
	if excess := len(c.history) - c.cfg.MaxHistory; excess > 0 {
		c.history = append([]Message(nil), c.history[excess:]...)
	}
}

func (c *Conductor) pick(pool []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pickLocked(pool)
}

func (c *Conductor) pickLocked(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[c.rng.IntN(len(pool))]
}
