package main

import (
	"flag"
	"net"
	"os"
	"os/signal"

	"github.com/meidoworks/orgsync/config"
	"github.com/meidoworks/orgsync/service/agent"
	"github.com/meidoworks/orgsync/shared/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

var _mainLogger = logging.NewLogger("AgentMain")

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
	if err := cfg.ValidateAgent(); err != nil {
		panic(err)
	}
	if err := logging.SetLevel(cfg.Shared.LogLevel); err != nil {
		panic(err)
	}
	if cfg.Shared.LogLevel != "debug" && cfg.Shared.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := agent.NewServiceAgent(agent.Config{
		MSPID:       cfg.Agent.MSPID,
		NodeId:      cfg.Shared.NodeId,
		Network:     cfg.Nodes,
		CommitDelay: cfg.Agent.CommitDelay(),
	})
	if err != nil {
		panic(err)
	}
	defer a.Close()

	l, err := net.Listen("tcp", cfg.Agent.Listen)
	if err != nil {
		panic(err)
	}
	errc, err := a.Serve(l)
	if err != nil {
		panic(err)
	}

	_mainLogger.Infof("agent of [%s] has been started!", cfg.Agent.MSPID)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		_mainLogger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		_mainLogger.Infof("terminating: %v", sig)
	}
}
