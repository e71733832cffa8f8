// SPDX-License-Identifier: GPL-2.0
/*
 * Copyright (c) 2026 The tlsharness authors.
 *
 * tlsharness is free software; you can redistribute it and/or
 * modify it under the terms of the GNU General Public License as
 * published by the Free Software Foundation; version 2.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
 * General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 51 Franklin Street, Fifth Floor, Boston, MA
 * 02110-1301, USA.
 */

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JESU20950/tlsharness/internal/harness"
	"github.com/JESU20950/tlsharness/internal/scenario"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.App{
		Name:      "tlsharness",
		Usage:     "Run deterministic in-process TLS handshake scenarios",
		ArgsUsage: "SCENARIO_FILE...",
		Flags: []cli.Flag{
			&cli.GenericFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set the log level",
				Value:   fromLogLevel(slog.LevelInfo),
			},
		},
		Before: func(c *cli.Context) error {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: (*slog.Level)(c.Generic("log-level").(*logLevelFlag)),
			}))
			return nil
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}

			var failed int
			for _, path := range c.Args().Slice() {
				n, err := runFile(logger, path)
				if err != nil {
					return err
				}
				failed += n
			}
			if failed > 0 {
				return fmt.Errorf("%d scenario(s) did not match their expected result", failed)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("Failed to run application", "error", err)
		os.Exit(1)
	}
}

// runFile runs every scenario in one file and returns the number of
// missed expectations. Errors are configuration problems that abort the
// whole run; a handshake that merely fails is a normal outcome.
func runFile(logger *slog.Logger, path string) (int, error) {
	f, err := scenario.Load(path)
	if err != nil {
		return 0, err
	}

	logger.Info("Running scenario file", "path", path, "scenarios", len(f.Scenarios))

	var failed int
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		scenarioLogger := logger.With("scenario", s.Name)

		rc, err := s.RunConfig()
		if err != nil {
			return 0, err
		}
		rc.Logger = scenarioLogger

		out, err := harness.Run(rc)
		if err != nil {
			return 0, fmt.Errorf("scenario %q: %w", s.Name, err)
		}

		scenarioLogger.Info("Scenario complete",
			"result", out.Result,
			"clientVersion", fmt.Sprintf("%#04x", out.ClientVersion),
			"serverVersion", fmt.Sprintf("%#04x", out.ServerVersion))

		want, ok, err := s.ExpectedResult()
		if err != nil {
			return 0, err
		}
		if ok && out.Result != want {
			scenarioLogger.Error("Unexpected result", "want", want, "got", out.Result)
			failed++
		}
	}
	return failed, nil
}

type logLevelFlag slog.Level

func fromLogLevel(l slog.Level) *logLevelFlag {
	f := logLevelFlag(l)
	return &f
}

func (f *logLevelFlag) Set(value string) error {
	return (*slog.Level)(f).UnmarshalText([]byte(value))
}

func (f *logLevelFlag) String() string {
	return (*slog.Level)(f).String()
}
