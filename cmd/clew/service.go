package main

import (
	"context"
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/clewhq/clew/pkg/app"
)

// program adapts app.Run to the service manager's start/stop lifecycle.
type program struct {
	configPath string

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		p.done <- app.Run(ctx, app.RunParams{
			ConfigPath: p.configPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
		})
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.cancel()
	return <-p.done
}

func newService(configPath string) (service.Service, error) {
	args := []string{"service", "exec"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return service.New(&program{configPath: configPath}, &service.Config{
		Name:        "clew",
		DisplayName: "clew agent runtime",
		Description: "Runs the clew agent gateway and scheduled tool discovery.",
		Arguments:   args,
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage clew as a system service",
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	control := func(action string) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the clew system service", action),
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfgPath, _ := cmd.Flags().GetString("config")
				svc, err := newService(cfgPath)
				if err != nil {
					return err
				}
				return service.Control(svc, action)
			},
		}
	}
	cmd.AddCommand(
		control("install"),
		control("uninstall"),
		control("start"),
		control("stop"),
		control("restart"),
	)

	cmd.AddCommand(&cobra.Command{
		Use:    "exec",
		Short:  "Run under the service manager (invoked by the service, not directly)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			svc, err := newService(cfgPath)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})
	return cmd
}
