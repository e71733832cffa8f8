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

// Package scenario loads declarative handshake scenarios from YAML files
// and translates them into harness run configurations.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"github.com/JESU20950/tlsharness/handshake"
	"github.com/JESU20950/tlsharness/internal/harness"
	"gopkg.in/yaml.v3"
)

// File is a parsed scenario file.
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one named handshake to run, with an optional expected
// result to check the outcome against.
type Scenario struct {
	Name        string  `yaml:"name"`
	Mode        string  `yaml:"mode"`
	AppDataSize int     `yaml:"appDataSize"`
	Server      *Config `yaml:"server"`
	Server2     *Config `yaml:"server2"`
	Client      *Config `yaml:"client"`

	ResumeServer *Config `yaml:"resumeServer"`
	ResumeClient *Config `yaml:"resumeClient"`

	Expect string `yaml:"expect"`
}

// Config is one endpoint configuration in scenario-file form. All fields
// are optional strings so scenario files stay terse; translation to the
// typed configuration happens in RunConfig.
type Config struct {
	MaxVersion     string `yaml:"maxVersion"`
	ServerName     string `yaml:"serverName"`
	ServerNameMode string `yaml:"serverNameMode"`
	NPNProtocols   string `yaml:"npnProtocols"`
	ALPNProtocols  string `yaml:"alpnProtocols"`
	Verify         string `yaml:"verify"`
	Ticket         string `yaml:"ticket"`
}

// Load reads and parses a scenario file. Unknown keys are rejected so a
// typo in a scenario cannot silently turn into a default.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("scenario: parsing %s: %w", path, err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario: %s contains no scenarios", path)
	}
	for i, s := range f.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario: entry %d has no name", i)
		}
	}
	return &f, nil
}

// RunConfig translates the scenario into a harness run configuration.
func (s *Scenario) RunConfig() (harness.RunConfig, error) {
	mode, err := parseMode(s.Mode)
	if err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	rc := harness.RunConfig{
		Mode:        mode,
		AppDataSize: s.AppDataSize,
	}
	if rc.Server, err = s.Server.translate(); err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: server: %w", s.Name, err)
	}
	if rc.Server2, err = s.Server2.translate(); err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: server2: %w", s.Name, err)
	}
	if rc.Client, err = s.Client.translate(); err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: client: %w", s.Name, err)
	}
	if rc.ResumeServer, err = s.ResumeServer.translate(); err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: resumeServer: %w", s.Name, err)
	}
	if rc.ResumeClient, err = s.ResumeClient.translate(); err != nil {
		return harness.RunConfig{}, fmt.Errorf("scenario %q: resumeClient: %w", s.Name, err)
	}
	return rc, nil
}

// ExpectedResult returns the expected result, if the scenario declares
// one.
func (s *Scenario) ExpectedResult() (handshake.Result, bool, error) {
	if s.Expect == "" {
		return 0, false, nil
	}
	r, err := parseResult(s.Expect)
	if err != nil {
		return 0, false, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return r, true, nil
}

func (c *Config) translate() (*handshake.Config, error) {
	if c == nil {
		return nil, nil
	}

	out := &handshake.Config{
		NPNProtocols:  c.NPNProtocols,
		ALPNProtocols: c.ALPNProtocols,
	}
	var err error
	if out.MaxVersion, err = parseVersion(c.MaxVersion); err != nil {
		return nil, err
	}
	if out.ServerName, err = parseServerName(c.ServerName); err != nil {
		return nil, err
	}
	if out.ServerNameMode, err = parseServerNameMode(c.ServerNameMode); err != nil {
		return nil, err
	}
	if out.Verify, err = parseVerify(c.Verify); err != nil {
		return nil, err
	}
	if out.Ticket, err = parseTicket(c.Ticket); err != nil {
		return nil, err
	}
	return out, nil
}

func parseMode(v string) (handshake.Mode, error) {
	switch v {
	case "", "simple":
		return handshake.ModeSimple, nil
	case "resume":
		return handshake.ModeResume, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", v)
	}
}

func parseVersion(v string) (uint16, error) {
	switch v {
	case "":
		return 0, nil
	case "TLSv1.2":
		return handshake.VersionTLS12, nil
	case "TLSv1.3":
		return handshake.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown version %q", v)
	}
}

func parseServerName(v string) (handshake.ServerName, error) {
	switch v {
	case "":
		return handshake.ServerNameNone, nil
	case "server1":
		return handshake.ServerNameServer1, nil
	case "server2":
		return handshake.ServerNameServer2, nil
	case "invalid":
		return handshake.ServerNameInvalid, nil
	default:
		return 0, fmt.Errorf("unknown server name %q", v)
	}
}

func parseServerNameMode(v string) (handshake.ServerNameMode, error) {
	switch v {
	case "":
		return handshake.ServerNameModeNone, nil
	case "ignore":
		return handshake.ServerNameModeIgnoreMismatch, nil
	case "reject":
		return handshake.ServerNameModeRejectMismatch, nil
	default:
		return 0, fmt.Errorf("unknown server name mode %q", v)
	}
}

func parseVerify(v string) (handshake.VerifyMode, error) {
	switch v {
	case "":
		return handshake.VerifyModeDefault, nil
	case "accept":
		return handshake.VerifyModeAcceptAll, nil
	case "reject":
		return handshake.VerifyModeRejectAll, nil
	default:
		return 0, fmt.Errorf("unknown verify mode %q", v)
	}
}

func parseTicket(v string) (handshake.TicketMode, error) {
	switch v {
	case "":
		return handshake.TicketModeNormal, nil
	case "broken":
		return handshake.TicketModeBroken, nil
	case "do-not-call":
		return handshake.TicketModeDoNotCall, nil
	default:
		return 0, fmt.Errorf("unknown ticket mode %q", v)
	}
}

func parseResult(v string) (handshake.Result, error) {
	switch v {
	case "success":
		return handshake.ResultSuccess, nil
	case "client-fail":
		return handshake.ResultClientFail, nil
	case "server-fail":
		return handshake.ResultServerFail, nil
	case "internal-error":
		return handshake.ResultInternalError, nil
	case "first-handshake-failed":
		return handshake.ResultFirstHandshakeFailed, nil
	default:
		return 0, fmt.Errorf("unknown expected result %q", v)
	}
}
