// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/doorman-auth/doorman/internal/xdg"
)

// EnvPrefix is the prefix of environment variables read into the config.
// A double underscore separates nesting levels: DOORMAN_HTTP__ADDR sets
// http.addr.
const EnvPrefix = "DOORMAN_"

// databaseURLEnv is honoured when database.url is not otherwise set.
const databaseURLEnv = "DATABASE_URL"

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here are not part of the configuration.
var FlagKeys = map[string]string{
	"env":          "env",
	"addr":         "http.addr",
	"public-url":   "http.public_url",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// File is an explicit YAML config path. When empty the XDG config file
	// is read if it exists.
	File string
	// DotEnv is a .env file whose entries fill in variables missing from
	// the process environment. A missing file is ignored.
	DotEnv string
	// Flags are applied last. Only flags the user set take effect.
	Flags *pflag.FlagSet
	// Environ replaces os.Environ.
	Environ func() []string
}

// Load assembles the configuration. Precedence, lowest first: defaults,
// YAML file, environment (including .env), flags. The result is not
// validated.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path, explicit := opts.File, opts.File != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrapf(err, "read config file")
			}
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	vars, err := withDotEnv(environ(), opts.DotEnv)
	if err != nil {
		return nil, err
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   func() []string { return vars },
	}), nil)
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read environment")
	}
	if !k.Exists("database.url") {
		if v := lookup(vars, databaseURLEnv); v != "" {
			_ = k.Set("database.url", v) //nolint:errcheck // Set only fails on nil maps
		}
	}

	if opts.Flags != nil {
		err = k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil)
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "read flags")
		}
	}

	cfg := Default()
	err = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	})
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrapf(err, "decode config")
	}
	return &cfg, nil
}

// envKey turns DOORMAN_SESSION__COOKIE_NAME into session.cookie_name.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	if k == "" {
		return "", nil
	}
	return strings.ReplaceAll(k, "__", "."), v
}

// withDotEnv appends entries from a .env file that are not already set in
// vars. The process environment always wins.
func withDotEnv(vars []string, path string) ([]string, error) {
	if path == "" {
		return vars, nil
	}
	entries, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return vars, nil
	}
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("path", path).
			Wrapf(err, "read .env file")
	}

	set := make(map[string]struct{}, len(vars))
	for _, kv := range vars {
		name, _, _ := strings.Cut(kv, "=")
		set[name] = struct{}{}
	}
	out := append([]string(nil), vars...)
	for name, value := range entries {
		if _, ok := set[name]; !ok {
			out = append(out, name+"="+value)
		}
	}
	return out, nil
}

func lookup(vars []string, name string) string {
	for _, kv := range vars {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v
		}
	}
	return ""
}
