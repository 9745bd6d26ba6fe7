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

package auth

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CallbackPath is where Google sends the user back after consent
const CallbackPath = "/api/auth/google/callback"

// Scopes requested at consent
var Scopes = []string{
	"https://www.googleapis.com/auth/documents",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

// 🔑 GoogleConfig holds the OAuth client registration
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string

	// Endpoint defaults to google.Endpoint
	Endpoint oauth2.Endpoint
}

// 🏭 NewGoogleProvider returns an oauth2.Config for the Google consent flow
func NewGoogleProvider(cfg GoogleConfig) *oauth2.Config {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  strings.TrimRight(cfg.BaseURL, "/") + CallbackPath,
		Scopes:       Scopes,
		Endpoint:     endpoint,
	}
}

// AuthCodeURL builds the consent url. Offline access and a forced consent
// prompt make Google return a refresh token every time.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}
