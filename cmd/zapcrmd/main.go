package main

import (
	"flag"

	"github.com/matheus3301/zapcrm/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "path to config file (default: <data dir>/config.toml)")
	dataDirFlag := flag.String("data-dir", "", "data directory (default: ~/.zapcrm)")
	listenFlag := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath: *configFlag,
			DataDir:    *dataDirFlag,
			Listen:     *listenFlag,
		}),
	)

	app.Run()
}
