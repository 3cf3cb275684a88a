package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".hfactory"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// DBFile is the database file name inside the data dir.
	DBFile = "factory.db"
	// AgentsFile is the default agent catalog inside the data dir.
	AgentsFile = "agents.json"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HFACTORY"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("HFACTORY_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// resolveHomeDir returns HFACTORY_HOME when set, else the user home dir.
func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("HFACTORY_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// expandHome replaces a leading ~ with the resolved home dir.
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := resolveHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. Env files are read first and
// never override variables already set in the process.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	groups := []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix + "_PATHS", &cfg.Paths},
		{EnvPrefix + "_STORE", &cfg.Store},
		{EnvPrefix + "_DISPATCH", &cfg.Dispatch},
		{EnvPrefix + "_SCHEDULER", &cfg.Scheduler},
		{EnvPrefix + "_KAFKA", &cfg.Kafka},
		{EnvPrefix + "_SLACK", &cfg.Slack},
		{EnvPrefix + "_METRICS", &cfg.Metrics},
		{EnvPrefix + "_LOG", &cfg.Log},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return nil, fmt.Errorf("config env %s: %w", g.prefix, err)
		}
	}

	cfg.resolve()
	return cfg, nil
}

// resolve expands paths and fills values derived from other settings.
func (c *Config) resolve() {
	defaults := DefaultConfig()

	c.Paths.DataDir = expandHome(c.Paths.DataDir)
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = expandHome(defaults.Paths.DataDir)
	}
	c.Paths.DBPath = expandHome(c.Paths.DBPath)
	if c.Paths.DBPath == "" {
		c.Paths.DBPath = filepath.Join(c.Paths.DataDir, DBFile)
	}
	c.Paths.AgentsCatalog = expandHome(c.Paths.AgentsCatalog)
	if c.Paths.AgentsCatalog == "" {
		c.Paths.AgentsCatalog = filepath.Join(c.Paths.DataDir, AgentsFile)
	}
	c.Scheduler.LockPath = expandHome(c.Scheduler.LockPath)
	if c.Scheduler.LockPath == "" {
		c.Scheduler.LockPath = filepath.Join(c.Paths.DataDir, "scheduler.lock")
	}
	c.Log.File = expandHome(c.Log.File)

	if c.Store.Driver == "" {
		c.Store.Driver = defaults.Store.Driver
	}
	if c.Dispatch.StaleAfter <= 0 {
		c.Dispatch.StaleAfter = defaults.Dispatch.StaleAfter
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if _, err := ParseLevel(c.Log.Level); err != nil {
		c.Log.Level = defaults.Log.Level
	}
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// includeKey names files merged underneath the object that lists them.
const includeKey = "$include"

// loadResolvedConfig reads path, merges its includes underneath it and
// substitutes ${VAR} references from the environment.
func loadResolvedConfig(path string) ([]byte, error) {
	l := &includeLoader{open: map[string]bool{}}
	obj, err := l.load(path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// includeLoader tracks the files on the current include chain.
type includeLoader struct {
	open map[string]bool
}

func (l *includeLoader) load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if l.open[abs] {
		return nil, fmt.Errorf("config include cycle detected at %s", abs)
	}
	l.open[abs] = true
	defer delete(l.open, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", abs, err)
	}

	names, err := includeNames(doc[includeKey])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	delete(doc, includeKey)

	out := map[string]any{}
	for _, name := range names {
		if !filepath.IsAbs(name) {
			name = filepath.Join(filepath.Dir(abs), name)
		}
		child, err := l.load(name)
		if err != nil {
			return nil, err
		}
		mergeInto(out, child)
	}
	mergeInto(out, substituteEnvValues(doc).(map[string]any))
	return out, nil
}

// includeNames accepts a single path or a list of paths; blanks are ignored.
func includeNames(v any) ([]string, error) {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		items = []any{t}
	case []any:
		items = t
	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", includeKey)
	}
	var names []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must be strings", includeKey)
		}
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	return names, nil
}

// mergeInto overlays src on dst; nested objects merge key by key, anything
// else replaces.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		sub, isObj := v.(map[string]any)
		prev, prevObj := dst[k].(map[string]any)
		if !isObj || !prevObj {
			if isObj {
				prev = map[string]any{}
				mergeInto(prev, sub)
				v = prev
			}
			dst[k] = v
			continue
		}
		mergeInto(prev, sub)
	}
}

// substituteEnvValues replaces ${VAR} in every string value. Unset
// variables are left as written.
func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case string:
		return envRef.ReplaceAllStringFunc(t, func(ref string) string {
			if val, ok := os.LookupEnv(ref[2 : len(ref)-1]); ok {
				return val
			}
			return ref
		})
	case map[string]any:
		for k := range t {
			t[k] = substituteEnvValues(t[k])
		}
	case []any:
		for i := range t {
			t[i] = substituteEnvValues(t[i])
		}
	}
	return v
}
