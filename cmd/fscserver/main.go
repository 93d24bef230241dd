// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"flag"
	"log"
	"os"

	"github.com/fullselfcoding/fsc-server/internal/analysis"
	"github.com/fullselfcoding/fsc-server/internal/committer"
	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/containerrunner"
	"github.com/fullselfcoding/fsc-server/internal/eventbus"
	"github.com/fullselfcoding/fsc-server/internal/httpapi"
	"github.com/fullselfcoding/fsc-server/internal/logging"
	"github.com/fullselfcoding/fsc-server/internal/orchestrator"
	"github.com/fullselfcoding/fsc-server/internal/persistence"
	"github.com/fullselfcoding/fsc-server/internal/state"
)

var (
	configPath string
	debug      bool
)

func main() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file (optional, defaults applied otherwise)")
	flag.BoolVar(&debug, "debug", false, "Enable debug-level logging")
	flag.Parse()

	logger, err := logging.New(debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if configPath != "" {
		cfg, err = config.Load(configPath, logger)
		if err != nil {
			logger.Fatalw("loading config", "error", err)
		}
	}

	store := state.New()
	defer store.Close()
	state.SetDefault(store)

	persist, err := persistence.New(cfg.StorageRoot)
	if err != nil {
		logger.Fatalw("opening persistence store", "error", err)
	}

	events := eventbus.New(cfg.EventBusURL)

	newRunner := func() (containerrunner.Runner, error) {
		return containerrunner.NewDockerRunner()
	}

	orch := orchestrator.New(
		cfg,
		analysis.NewStub(nil),
		persist,
		store,
		events,
		newRunner,
		committer.Options{},
		logger,
	)

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	server := httpapi.New(addr, orch, persist, store, cfg.GithubWebhookSecret, logger)

	if err := server.Run(); err != nil {
		logger.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}
