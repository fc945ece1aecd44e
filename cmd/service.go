package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	ksvc "github.com/kardianos/service"

	"github.com/agnosto/fbtweeter/logger"
)

type Program struct {
	app    *App
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Program) Start(s ksvc.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *Program) run(ctx context.Context) {
	defer close(p.done)
	if err := p.app.Serve(ctx); err != nil {
		logger.Logger.Printf("Service stopped with error: %v", err)
	}
}

func (p *Program) Stop(s ksvc.Service) error {
	p.app.Bot.Shutdown()
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

func serviceConfig(flags Flags) (*ksvc.Config, error) {
	args := []string{}
	if flags.ConfigPath != "" {
		path, err := filepath.Abs(flags.ConfigPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "-config", path)
	}
	envPath, err := filepath.Abs(flags.EnvPath)
	if err != nil {
		return nil, err
	}
	args = append(args, "-env", envPath, "service", "run")

	return &ksvc.Config{
		Name:        "FBTweeter",
		DisplayName: "Facebook to Twitter Bot",
		Description: "Tweets images posted to a Facebook page.",
		Arguments:   args,
	}, nil
}

// RunService handles "service <action>". The run action blocks until the
// service manager stops the process.
func RunService(flags Flags, app *App) error {
	svcConfig, err := serviceConfig(flags)
	if err != nil {
		return err
	}

	prg := &Program{app: app}
	s, err := ksvc.New(prg, svcConfig)
	if err != nil {
		return fmt.Errorf("error creating service: %w", err)
	}

	if flags.ServiceAction == "run" {
		if err := s.Run(); err != nil {
			return fmt.Errorf("error running service: %w", err)
		}
		return nil
	}

	if err := ksvc.Control(s, flags.ServiceAction); err != nil {
		return fmt.Errorf("failed to %s service: %w", flags.ServiceAction, err)
	}
	return nil
}
