// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// Config collects the node settings. Flags override file values.
type Config struct {
	DataDir     string `yaml:"data-dir"`
	Genesis     string `yaml:"genesis"`
	APIAddr     string `yaml:"api-addr"`
	MetricsAddr string `yaml:"metrics-addr"`
	Verbosity   int    `yaml:"verbosity"`
}

func loadConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{
		DataDir:   dataDirFlag.Value,
		APIAddr:   apiAddrFlag.Value,
		Verbosity: verbosityFlag.Value,
	}
	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(genesisFlag.Name) {
		cfg.Genesis = ctx.String(genesisFlag.Name)
	}
	if ctx.IsSet(apiAddrFlag.Name) {
		cfg.APIAddr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	if cfg.Genesis == "" {
		return nil, errors.New("genesis file is required")
	}
	return cfg, nil
}
