package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/realtime-ai/interview-agent/pkg/agent"
	"github.com/realtime-ai/interview-agent/pkg/config"
	"github.com/realtime-ai/interview-agent/pkg/server"
	"github.com/realtime-ai/interview-agent/pkg/trace"
)

// ServeCmd starts the control API.
// Usage: interviewer serve --addr :8080
type ServeCmd struct {
	Addr        string `short:"a" long:"addr" description:"listen address"`
	MaxSessions int    `long:"max-sessions" description:"concurrent interview limit (0 = none)"`

	root *Options
}

func (s *ServeCmd) Execute(_ []string) error {
	cfg, err := loadConfig(s.root)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if cfg.Room.Kind == config.RoomLocal && s.MaxSessions != 1 {
		// One machine has one microphone.
		log.Printf("[Interviewer] local room: limiting to one session")
		s.MaxSessions = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trace.Initialize(ctx, cfg.Trace); err != nil {
		log.Printf("[Interviewer] tracing disabled: %v", err)
	}
	defer shutdownTrace()

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr
	srvCfg.AuthToken = cfg.Server.AuthToken
	srvCfg.MaxSessions = s.MaxSessions

	srv := server.New(srvCfg, agent.NewRegistry(), sessionFactory(cfg))
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	<-ctx.Done()
	log.Printf("[Interviewer] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// sessionFactory builds sessions from cfg, letting the request replace the
// interview description.
func sessionFactory(cfg config.Config) server.SessionFactory {
	return func(ctx context.Context, id string, req server.StartRequest) (*agent.Controller, error) {
		ictx := cfg.Interview
		if req.Interview != nil {
			ictx = *req.Interview
			if ictx.TimeBudgetMinutes <= 0 {
				ictx.TimeBudgetMinutes = cfg.Interview.TimeBudgetMinutes
			}
		}
		// The session outlives the HTTP request that created it.
		return newSession(context.WithoutCancel(ctx), cfg, id, ictx)
	}
}
