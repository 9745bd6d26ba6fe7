// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// envFunc exposes env("NAME") to config files
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}

	// Define HCL schema
	type hclConfig struct {
		Server *struct {
			Addr          string `hcl:"addr,optional"`
			BaseURL       string `hcl:"base_url,optional"`
			SecureCookies bool   `hcl:"secure_cookies,optional"`
		} `hcl:"server,block"`
		Google *struct {
			ClientID     string `hcl:"client_id,optional"`
			ClientSecret string `hcl:"client_secret,optional"`
		} `hcl:"google,block"`
		Session *struct {
			Secret string `hcl:"secret,optional"`
			TTL    string `hcl:"ttl,optional"`
		} `hcl:"session,block"`
		Rules *struct {
			URL             string `hcl:"url,optional"`
			File            string `hcl:"file,optional"`
			RefreshInterval string `hcl:"refresh_interval,optional"`
			Timeout         string `hcl:"timeout,optional"`
		} `hcl:"rules,block"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{}

	if s := hclCfg.Server; s != nil {
		cfg.Server = ServerConfig{Addr: s.Addr, BaseURL: s.BaseURL, SecureCookies: s.SecureCookies}
	}
	if g := hclCfg.Google; g != nil {
		cfg.Google = GoogleConfig{ClientID: g.ClientID, ClientSecret: g.ClientSecret}
	}
	if s := hclCfg.Session; s != nil {
		cfg.Session.Secret = s.Secret
		if err := parseDuration(s.TTL, &cfg.Session.TTL); err != nil {
			return nil, errors.Errorf("session.ttl: %w", err)
		}
	}
	if r := hclCfg.Rules; r != nil {
		cfg.Rules.URL = r.URL
		cfg.Rules.File = r.File
		if err := parseDuration(r.RefreshInterval, &cfg.Rules.RefreshInterval); err != nil {
			return nil, errors.Errorf("rules.refresh_interval: %w", err)
		}
		if err := parseDuration(r.Timeout, &cfg.Rules.Timeout); err != nil {
			return nil, errors.Errorf("rules.timeout: %w", err)
		}
	}

	return cfg, nil
}

func parseDuration(s string, dst *Duration) error {
	if s == "" {
		return nil
	}
	return dst.UnmarshalText([]byte(s))
}
