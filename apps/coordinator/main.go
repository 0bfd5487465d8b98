package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"

	"github.com/meidoworks/orgsync/config"
	"github.com/meidoworks/orgsync/service/barrier"
	"github.com/meidoworks/orgsync/service/coordinator"
	"github.com/meidoworks/orgsync/service/facade"
	"github.com/meidoworks/orgsync/service/inproc"
	"github.com/meidoworks/orgsync/shared/logging"

	"github.com/spf13/afero"
)

var _mainLogger = logging.NewLogger("CoordinatorMain")

var (
	configFile           string
	generateSampleConfig bool
)

func init() {
	flag.StringVar(&configFile, "c", "orgsync.toml", "-c=orgsync.toml")
	flag.BoolVar(&generateSampleConfig, "gencfg", false, "-gencfg")

	flag.Parse()
}

func main() {
	fs := afero.NewOsFs()
	if generateSampleConfig {
		if err := config.WriteDefaultFile(fs, "orgsync.toml.example"); err != nil {
			panic(err)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(fs, configFile)
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateCoordinator(); err != nil {
		panic(err)
	}
	if err := logging.SetLevel(cfg.Shared.LogLevel); err != nil {
		panic(err)
	}

	ctx := context.Background()
	orgs, err := inproc.StartOrganizations(ctx, cfg, inproc.GetLocalSwitch())
	if err != nil {
		panic(err)
	}
	defer orgs.Close()

	client, err := facade.New(orgs.Primary, orgs.Clients...)
	if err != nil {
		panic(err)
	}

	var b *barrier.Server
	if !cfg.Barrier.Disable {
		b, err = barrier.NewServer(ctx, barrier.Config{
			Listen:          cfg.Barrier.Listen,
			Delimiter:       cfg.Barrier.Delimiter,
			MaxParticipants: cfg.Barrier.MaxParticipants,
			Expected:        cfg.Barrier.Expected,
			Client:          client,
			Channel:         cfg.Barrier.Channel,
		})
		if err != nil {
			panic(err)
		}
		if err := b.Start(); err != nil {
			panic(err)
		}
		defer b.Close()
	}

	c := coordinator.NewCoordinator(client, b, coordinator.Config{
		Channel:     cfg.Coordinator.Channel,
		Nodes:       cfg.Nodes,
		WaitTimeout: cfg.Barrier.WaitTimeout(),
	})
	l, err := net.Listen("tcp", cfg.Coordinator.Listen)
	if err != nil {
		panic(err)
	}
	errc := c.Serve(l)

	_mainLogger.Infof("coordinator has been started!")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		_mainLogger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		_mainLogger.Infof("terminating: %v", sig)
	}
}
