package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/meidoworks/orgsync/clients/barrierclient"
	"github.com/meidoworks/orgsync/config"
	"github.com/meidoworks/orgsync/shared/logging"
	"github.com/meidoworks/orgsync/shared/workgroup"

	"github.com/spf13/afero"
)

var _mainLogger = logging.NewLogger("ParticipantMain")

var (
	configFile           string
	generateSampleConfig bool
	readyAtStart         bool
)

func init() {
	flag.StringVar(&configFile, "c", "orgsync.toml", "-c=orgsync.toml")
	flag.BoolVar(&generateSampleConfig, "gencfg", false, "-gencfg")
	flag.BoolVar(&readyAtStart, "ready", false, "report immediately instead of waiting for a line on stdin")

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
	if err := cfg.ValidateParticipant(); err != nil {
		panic(err)
	}
	if err := logging.SetLevel(cfg.Shared.LogLevel); err != nil {
		panic(err)
	}

	ready := make(chan struct{})
	if readyAtStart {
		close(ready)
	} else {
		go func() {
			// the operator confirms the local step by pressing enter
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			close(ready)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	completed := make(chan struct{})
	var completeOnce sync.Once
	markCompleted := func() {
		completeOnce.Do(func() { close(completed) })
	}
	stopped := workgroup.WithFailOverDelay(3*time.Second).RunContext(ctx, "participant", func(ctx context.Context) bool {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		p, err := barrierclient.Dial(dialCtx, barrierclient.Config{
			Server:    cfg.Participant.Server,
			MSPIDs:    cfg.Participant.MSPIDs,
			Delimiter: cfg.Participant.Delimiter,
		})
		cancel()
		if err != nil {
			_mainLogger.Errorf("connecting barrier failed: %s", err)
			return false
		}
		defer p.Close()

		go func() {
			select {
			case <-ready:
			case <-ctx.Done():
				return
			}
			if err := p.MarkReady(ctx); err != nil {
				_mainLogger.Warnf("reporting failed: %s", err)
			}
		}()
		go func() {
			if err := p.WaitCompleted(ctx); err == nil {
				markCompleted()
			}
		}()
		if err := p.Run(ctx); err != nil {
			_mainLogger.Warnf("barrier connection lost: %s", err)
		}
		if p.Rounds() > 0 {
			markCompleted()
			return true
		}
		return false
	})

	select {
	case <-completed:
		_mainLogger.Infof("setup step completed")
	case <-stopped:
		_mainLogger.Infof("terminating: %s", context.Cause(ctx))
	}
}
