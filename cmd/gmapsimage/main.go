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
	"fmt"
	"io"
	"os"
	"strings"

	// Since we're not in the gmapsimage package we have to import it
	"github.com/FabianWe/gmapsimage"
	"github.com/FabianWe/gmapsimage/config"

	log "github.com/sirupsen/logrus"
)

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage:", os.Args[0], "[flags] [SCRIPT [ARGS...]]")
		fmt.Fprintln(out, "Without a script an interactive shell is started. SCRIPT is either a")
		fmt.Fprintln(out, "file or one of the predefined scripts:")
		for name := range gmapsimage.PredefinedScripts {
			fmt.Fprintln(out, "  ", name)
		}
		fmt.Fprintln(out, "Flags:")
		fs.PrintDefaults()
	}
}

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = usage(fs)
	cfg, cfgErr := config.Load(fs, os.Args[1:])
	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", cfgErr)
		os.Exit(1)
	}
	if err := cfg.SetupLogging(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	service, serviceErr := gmapsimage.OpenService(context.Background(), cfg)
	if serviceErr != nil {
		log.WithError(serviceErr).Fatal("Can't open cache")
	}
	defer service.Close()

	args := fs.Args()
	if len(args) == 0 {
		gmapsimage.Execute(gmapsimage.ReplHandler{Service: service}, gmapsimage.DefaultCommands)
		return
	}
	script, scriptErr := openScript(args[0], args[1:])
	if scriptErr != nil {
		log.WithError(scriptErr).Error("Can't read script")
		service.Close()
		os.Exit(1)
	}
	handler := gmapsimage.NewScriptHandler(service, script)
	if !gmapsimage.Execute(handler, gmapsimage.DefaultCommands) {
		service.Close()
		os.Exit(1)
	}
}

func openScript(name string, args []string) (io.Reader, error) {
	if source, ok := gmapsimage.PredefinedScripts[name]; ok {
		return gmapsimage.ParameterizedFromStrings(strings.Split(source, "\n"), args...), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gmapsimage.Parameterized(f, args...)
}
