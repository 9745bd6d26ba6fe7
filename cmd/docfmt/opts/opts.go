package opts

import (
	"context"
	"os"
	"sync"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"

	"github.com/walteh/docfmt/pkg/config"
	"github.com/walteh/docfmt/pkg/gdocs"
	"github.com/walteh/docfmt/pkg/log"
	"github.com/walteh/docfmt/pkg/operation"
	"github.com/walteh/docfmt/pkg/rules"
)

// TokenEnv names the variable read when --token is not given
const TokenEnv = "GOOGLE_ACCESS_TOKEN"

// RootOpts contains shared options used by all commands
type RootOpts struct {
	// flags
	ConfigFile string
	Debug      bool
	Token      string
	RulesURL   string
	RulesFile  string

	Config  *config.Config
	Console *log.Logger

	// NewClient builds the Google client for CLI commands; tests replace it
	NewClient func(ctx context.Context, ts oauth2.TokenSource) (gdocs.Client, error)

	cacheOnce sync.Once
	cache     *rules.Cache
	cacheErr  error
}

// LoadConfig reads the config file, or the environment when none is given,
// and applies the rule flags on top
func (o *RootOpts) LoadConfig(ctx context.Context) error {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigFile != "" {
		cfg, err = config.Load(ctx, o.ConfigFile)
	} else {
		cfg, err = config.FromEnv(os.LookupEnv)
	}
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	if o.RulesURL != "" {
		cfg.Rules.URL = o.RulesURL
	}
	if o.RulesFile != "" {
		cfg.Rules.File = o.RulesFile
	}

	o.Config = cfg
	return nil
}

// Source returns the configured rule source
func (o *RootOpts) Source() (rules.Source, error) {
	return rules.NewSource(o.Config.Rules.URL, o.Config.Rules.File, o.Config.Rules.Timeout.Std())
}

// Rules returns the shared rule cache
func (o *RootOpts) Rules() (*rules.Cache, error) {
	o.cacheOnce.Do(func() {
		src, err := o.Source()
		if err != nil {
			o.cacheErr = err
			return
		}
		o.cache = rules.NewCache(src, o.Config.Rules.RefreshInterval.Std())
	})
	return o.cache, o.cacheErr
}

// Operations returns a formatting service backed by the rule cache
func (o *RootOpts) Operations(opts ...operation.Option) (*operation.Service, error) {
	cache, err := o.Rules()
	if err != nil {
		return nil, err
	}
	return operation.New(cache, opts...), nil
}

// Client returns a Google client authorised by --token or GOOGLE_ACCESS_TOKEN
func (o *RootOpts) Client(ctx context.Context) (gdocs.Client, error) {
	token := o.Token
	if token == "" {
		token = os.Getenv(TokenEnv)
	}
	if token == "" {
		return nil, errors.Errorf("an access token is required: pass --token or set %s", TokenEnv)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})

	if o.NewClient != nil {
		return o.NewClient(ctx, ts)
	}

	svc, err := gdocs.NewFromTokenSource(ctx, ts)
	if err != nil {
		return nil, errors.Errorf("creating google client: %w", err)
	}
	return svc, nil
}
