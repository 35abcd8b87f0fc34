/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xoviat/capsynth/lib/array"
	"github.com/xoviat/capsynth/lib/config"
	"github.com/xoviat/capsynth/lib/flow"
	"github.com/xoviat/capsynth/lib/sheet"
	"github.com/xoviat/capsynth/lib/store"
	"github.com/xoviat/capsynth/lib/verify"
)

var (
	cfgFile string
	verbose bool

	conf   *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "capsynth",
	Short: "Synthesize, tune and assemble on-chip capacitors.",
	Long: `capsynth draws metal capacitor unit cells, tunes their dimensions
against a verification backend until the measured capacitance meets the
target, derives the matching dummy cell and assembles both into a routed
array.

Runs are kept in a local database and can be searched, exported and
bundled afterwards.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if logger, err = newLogger(verbose); err != nil {
			return errors.Wrap(err, "failed to build logger")
		}

		path := cfgFile
		if path == "" {
			path = filepath.Join(config.DefaultPath(), "capsynth.yaml")
		}
		if conf, err = config.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load config %s", path)
		}
		logger.Debug("loaded config", zap.String("path", path), zap.String("backend", conf.Backend.Kind))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $LOCALAPPDATA/capsynth/capsynth.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

// interruptible is cancelled on the first interrupt.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newBackend() (verify.Backend, error) {
	b := conf.Backend
	switch b.Kind {
	case config.BackendAnalytic:
		return verify.NewAnalytic(conf.Process), nil
	case config.BackendExec:
		return verify.NewExec(b.Root, b.Binary, b.MinVersion, logger)
	case config.BackendRemote:
		return verify.NewRemote(b.URL, b.Interval), nil
	}
	return nil, errors.Wrapf(config.ErrInvalid, "unknown backend %q", b.Kind)
}

func newGateway() (*verify.Gateway, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return verify.NewGateway(b, logger), nil
}

func openStore() (*store.Store, error) {
	return store.Open(conf.Store.Path, logger)
}

// newFlow builds a design flow seeded with the stored constraints of the
// configured cell.
func newFlow(st *store.Store) (*flow.Flow, error) {
	gw, err := newGateway()
	if err != nil {
		return nil, err
	}
	c, err := st.Constraints(conf.Cell.Name)
	if err != nil {
		return nil, err
	}
	return flow.New(gw, conf, logger).WithConstraints(c), nil
}

// loadSpec reads an array spec from YAML or from an XLSX workbook named
// after the array.
func loadSpec(path string) (*array.Spec, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return sheet.ReadSpec(fp, name, conf.Array.DummySentinel)
	case ".yaml", ".yml":
		spec, err := array.DecodeSpec(fp)
		if err != nil {
			return nil, err
		}
		return spec.Resolve(conf.Array.DummySentinel)
	}
	return nil, fmt.Errorf("%s: array specs must be .yaml or .xlsx", path)
}
