package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/realtime-ai/interview-agent/pkg/config"
	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// RunCmd runs a single interview and exits when it completes.
// Usage: interviewer run -f interview.yaml --room websocket --url wss://...
type RunCmd struct {
	Room      string   `short:"r" long:"room" description:"room kind: local|websocket|webrtc"`
	URL       string   `short:"u" long:"url" description:"room URL for websocket and webrtc rooms"`
	Title     string   `short:"t" long:"title" description:"interview title"`
	Questions []string `short:"q" long:"question" description:"question to ask (repeatable); replaces configured questions"`
	Minutes   int      `short:"m" long:"minutes" description:"time budget in minutes"`

	root *Options
}

// apply overlays the command line on cfg.
func (r *RunCmd) apply(cfg *config.Config) {
	if r.Room != "" {
		cfg.Room.Kind = r.Room
	}
	if r.URL != "" {
		cfg.Room.URL = r.URL
	}
	if r.Title != "" {
		cfg.Interview.Title = r.Title
	}
	if len(r.Questions) > 0 {
		cfg.Interview.CustomQuestions = r.Questions
		cfg.Interview.GeneratedQuestions = nil
	}
	if r.Minutes > 0 {
		cfg.Interview.TimeBudgetMinutes = r.Minutes
	}
}

func (r *RunCmd) Execute(_ []string) error {
	cfg, err := loadConfig(r.root)
	if err != nil {
		return err
	}
	r.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, cfg.Trace); err != nil {
		log.Printf("[Interviewer] tracing disabled: %v", err)
	}
	defer shutdownTrace()

	ctx, span := trace.StartSpan(ctx, "interview.run",
		oteltrace.WithAttributes(trace.InterviewAttrs(cfg.Interview.Title, len(cfg.Interview.Questions()))...))
	defer span.End()

	c, err := newSession(ctx, cfg, "", cfg.Interview)
	if err != nil {
		trace.RecordErrorType(span, "setup", err)
		return err
	}
	if err := c.StartInterview(ctx); err != nil {
		trace.RecordErrorType(span, "start", err)
		c.Stop()
		return fmt.Errorf("start interview: %w", err)
	}

	select {
	case <-c.Done():
		log.Print(trace.LogWithTrace(ctx, "[Interviewer] interview "+c.ID()+" finished"))
	case <-ctx.Done():
		log.Printf("[Interviewer] interrupted, stopping interview %s", c.ID())
		c.Stop()
	}
	return nil
}

func loadConfig(root *Options) (config.Config, error) {
	path := ""
	if root != nil {
		path = root.Config
	}
	return config.Load(path)
}

func shutdownTrace() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := trace.Shutdown(ctx); err != nil {
		log.Printf("[Interviewer] trace shutdown: %v", err)
	}
}
