// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/FabianWe/gmapsimage"
	"github.com/FabianWe/gmapsimage/config"
	"github.com/FabianWe/gmapsimage/web"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/sirupsen/logrus"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg, cfgErr := config.Load(fs, os.Args[1:])
	if cfgErr != nil {
		log.WithError(cfgErr).Fatal("Invalid configuration")
	}
	if err := cfg.SetupLogging(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := gmapsimage.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		log.WithError(err).Fatal("Can't register metrics")
	}
	service, serviceErr := gmapsimage.OpenService(context.Background(), cfg)
	if serviceErr != nil {
		log.WithError(serviceErr).Fatal("Can't open cache")
	}
	defer service.Close()

	jobs := web.NewMemStorage()
	done := web.RunFilter(jobs, cfg.Server.JobMaxAge, cfg.Server.JobFilterInterval)
	defer close(done)

	router := web.NewRouter(web.NewContext(service, jobs))
	log.WithField("address", cfg.Server.Address).Info("Starting server")
	if err := http.ListenAndServe(cfg.Server.Address, router); err != nil {
		log.WithError(err).Error("Server stopped")
	}
}
