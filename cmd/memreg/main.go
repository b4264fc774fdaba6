// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lesismal/memreg"
	"github.com/lesismal/memreg/environment"
	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/memhttp"
	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path of a YAML config file",
	EnvVars: []string{"MEMREG_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:  "memreg",
		Usage: "boot an allocator registry and inspect it",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{{
			Name:  "dump",
			Usage: "boot the registry and print allocator stats as JSON",
			Action: withModule(func(c *cli.Context, conf memreg.Config, mgr *memreg.Manager) error {
				data, err := mgr.DumpJSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, string(data))
				return err
			}),
		}, {
			Name:  "serve",
			Usage: "boot the registry and serve the debug HTTP surface",
			Flags: []cli.Flag{&cli.StringFlag{
				Name:  "addr",
				Usage: "listening addr, overrides debug_addr",
			}},
			Action: withModule(func(c *cli.Context, conf memreg.Config, mgr *memreg.Manager) error {
				addr := conf.DebugAddr
				if c.String("addr") != "" {
					addr = c.String("addr")
				}
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				logging.Info("serving allocator stats on %v", addr)
				return memhttp.Serve(ctx, addr, memhttp.NewHandler(mgr, memhttp.Config{
					WatchInterval: conf.WatchInterval,
					Logger:        conf.Logger,
				}))
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withModule(fn func(c *cli.Context, conf memreg.Config, mgr *memreg.Manager) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		conf, err := memreg.LoadConfig(c.String(configFlag.Name))
		if err != nil {
			return err
		}
		lvl, _ := logging.ParseLevel(conf.LogLevel)
		logging.SetLevel(lvl)

		mod := memreg.NewModule(conf.Name, conf)
		mgr := boot(mod)
		defer environment.Destroy()
		defer mod.Destroy()
		return fn(c, conf, mgr)
	}
}
