// Package profile manages named strategy profiles loaded from a YAML
// file, with hot reload on file change. A profile that fails
// validation is rejected wholesale: a reload keeps the previous
// snapshot, the initial load fails startup.
package profile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type profileFile struct {
	Profiles map[string]config.StrategyProfile `toml:"profiles"`
}

// Snapshot is one immutable view of the profile set.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]config.StrategyProfile
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the profile file and watches it for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profiles failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.v.ReadInConfig(); err != nil {
			logger.Errorf("profile reload read failed: %v", err)
			return
		}
		if err := r.reload(); err != nil {
			logger.Errorf("profile reload failed, keeping previous set: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	var cfg profileFile
	err := r.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	})
	if err != nil {
		return fmt.Errorf("decode profiles failed: %w", err)
	}
	if len(cfg.Profiles) == 0 {
		return fmt.Errorf("no profiles defined in %s", r.path)
	}

	profiles := make(map[string]config.StrategyProfile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		p.ApplyDefaults()
		if err := p.Validate(); err != nil {
			return fmt.Errorf("profile %q invalid: %w", name, err)
		}
		profiles[name] = p
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("Profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	return nil
}

// Snapshot returns a copy of the current profile set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Get returns the named profile.
func (r *Registry) Get(name string) (config.StrategyProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(name)]
	return p, ok
}

// Names lists the loaded profile names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Profiles))
	for name := range r.snapshot.Profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OnChange registers a listener for reloads.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("profile listener")
			cb(snap)
		}(fn)
	}
}

// Dump renders one profile as YAML for the status API.
func (r *Registry) Dump(name string) (string, error) {
	p, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown profile %q", name)
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]config.StrategyProfile, len(src.Profiles)),
	}
	for name, p := range src.Profiles {
		dst.Profiles[name] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
