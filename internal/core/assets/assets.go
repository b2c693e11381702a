// Package assets resolves asset paths named by guests to fetchable URLs.
package assets

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

var ErrInvalidBaseURL = errors.New("assets: base url must be absolute")

type Config struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Known restricts resolution to these paths. Empty means any path.
	Known []string `yaml:"known" mapstructure:"known"`
}

func DefaultConfig() Config {
	return Config{BaseURL: "http://localhost:8000/assets/"}
}

type Resolver struct {
	mu    sync.RWMutex
	base  *url.URL
	known map[string]struct{}
}

func New(cfg Config) (*Resolver, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	r := &Resolver{base: base}
	for _, p := range cfg.Known {
		r.Add(p)
	}
	return r, nil
}

// Add makes p resolvable once a Known list is in effect.
func (r *Resolver) Add(p string) {
	clean, ok := cleanPath(p)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known == nil {
		r.known = make(map[string]struct{})
	}
	r.known[clean] = struct{}{}
}

// URL resolves p against the base URL. It is false for empty paths, paths
// escaping the asset root, and paths outside the known set.
func (r *Resolver) URL(p string) (string, bool) {
	clean, ok := cleanPath(p)
	if !ok {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.known != nil {
		if _, ok := r.known[clean]; !ok {
			return "", false
		}
	}
	return r.base.JoinPath(clean).String(), true
}

func cleanPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" || strings.Contains(p, "://") {
		return "", false
	}
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", false
	}
	clean = strings.TrimPrefix(clean, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	return clean, true
}
