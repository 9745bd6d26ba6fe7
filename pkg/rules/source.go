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

package rules

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/docfmt/pkg/trie"
)

const defaultTimeout = 30 * time.Second

// 📥 Source provides the rule list used to build a trie
type Source interface {
	Rules(ctx context.Context) ([]trie.Rule, error)
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// 🌐 HTTPSource downloads a JSON rule list
type HTTPSource struct {
	client  httpClient
	url     string
	timeout time.Duration
}

// NewHTTPSource creates a source for url. A nil client uses a default
// http.Client.
func NewHTTPSource(url string, client httpClient) HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return HTTPSource{
		client:  client,
		url:     url,
		timeout: defaultTimeout,
	}
}

// WithTimeout bounds a single download
func (s HTTPSource) WithTimeout(d time.Duration) HTTPSource {
	if d <= 0 {
		return s
	}
	s.timeout = d
	return s
}

// String returns the feed url
func (s HTTPSource) String() string {
	return s.url
}

// Rules implements Source
func (s HTTPSource) Rules(ctx context.Context) ([]trie.Rule, error) {
	if s.url == "" {
		return nil, errors.Errorf("rules url is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Errorf("creating rules request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("downloading rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("downloading rules: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rules []trie.Rule
	if err := json.NewDecoder(resp.Body).Decode(&rules); err != nil {
		return nil, errors.Errorf("decoding rules: %w", err)
	}

	return rules, nil
}

// 📄 FileSource reads a rule list from a .json, .yaml or .yml file
type FileSource struct {
	Path string
}

// String returns the file path
func (s FileSource) String() string {
	return s.Path
}

// Rules implements Source
func (s FileSource) Rules(ctx context.Context) ([]trie.Rule, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.Errorf("reading rules file: %w", err)
	}

	var rules []trie.Rule
	switch ext := strings.ToLower(filepath.Ext(s.Path)); ext {
	case ".json":
		err = json.Unmarshal(data, &rules)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rules)
	default:
		return nil, errors.Errorf("unsupported rules file extension %q", ext)
	}
	if err != nil {
		return nil, errors.Errorf("decoding rules file %s: %w", s.Path, err)
	}

	return rules, nil
}

// StaticSource serves a fixed rule list
type StaticSource []trie.Rule

// Rules implements Source
func (s StaticSource) Rules(ctx context.Context) ([]trie.Rule, error) {
	return s, nil
}

// NewSource picks the HTTP feed when url is set and the file otherwise. A
// positive timeout bounds each download of the feed.
func NewSource(url, file string, timeout time.Duration) (Source, error) {
	switch {
	case url != "":
		return NewHTTPSource(url, nil).WithTimeout(timeout), nil
	case file != "":
		return FileSource{Path: file}, nil
	default:
		return nil, errors.Errorf("no rules source configured")
	}
}
