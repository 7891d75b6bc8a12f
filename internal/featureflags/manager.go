// Package featureflags evaluates deploy-time feature switches.
//
// FEATURE_FLAGS is a comma-separated list of name=value pairs, for example
// "realtime_notifications=on,draft_autosave=25%,local_sync=users:alice|bob".
// A value is on/off, a percentage rollout bucketed by username, or an
// explicit user list.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Flags known to the application.
const (
	RealtimeNotifications = "realtime_notifications"
	DraftAutosave         = "draft_autosave"
	LocalSync             = "local_sync"
)

// Known lists every flag the application reads.
var Known = []string{RealtimeNotifications, DraftAutosave, LocalSync}

type rule struct {
	raw     string
	percent int // 0..100; 100 means on for everyone
	users   map[string]bool
}

func (r rule) enabledFor(name, username string) bool {
	if r.users != nil {
		return r.users[username]
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0 || username == "":
		return false
	}
	return rolloutBucket(name, username) < r.percent
}

func parseRule(value string) (rule, error) {
	r := rule{raw: value}
	switch value {
	case "on", "true", "1":
		r.percent = 100
		return r, nil
	case "off", "false", "0":
		return r, nil
	}

	if list, ok := strings.CutPrefix(value, "users:"); ok {
		r.users = make(map[string]bool)
		for _, u := range strings.Split(list, "|") {
			if u = strings.TrimSpace(u); u != "" {
				r.users[u] = true
			}
		}
		return r, nil
	}

	if pct, ok := strings.CutSuffix(value, "%"); ok {
		n, err := strconv.Atoi(pct)
		if err != nil || n < 0 || n > 100 {
			return r, fmt.Errorf("invalid rollout percentage %q", value)
		}
		r.percent = n
		return r, nil
	}
	return r, fmt.Errorf("unrecognized flag value %q", value)
}

// Manager evaluates feature flags. A nil Manager reports every flag off.
type Manager struct {
	rules map[string]rule
}

// Parse builds a Manager from a FEATURE_FLAGS string and reports every
// malformed entry. The returned Manager holds the entries that did parse.
func Parse(raw string) (*Manager, error) {
	m := &Manager{rules: make(map[string]rule)}
	var problems []string
	for _, pair := range strings.Split(raw, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if !ok || key == "" || value == "" {
			problems = append(problems, fmt.Sprintf("%q: expected name=value", pair))
			continue
		}
		r, err := parseRule(value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		m.rules[key] = r
	}
	if len(problems) > 0 {
		return m, fmt.Errorf("feature flags: %s", strings.Join(problems, "; "))
	}
	return m, nil
}

// NewManager is Parse without the error; malformed entries are dropped.
func NewManager(raw string) *Manager {
	m, _ := Parse(raw)
	return m
}

// Enabled reports whether name is on for username.
func (m *Manager) Enabled(name string, username string) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	return r.enabledFor(normalize(name), username)
}

// Raw returns the configured value of every flag.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for one user.
func (m *Manager) Snapshot(username string) map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, username)
	}
	return out
}

// Unknown returns configured flag names the application never reads.
func (m *Manager) Unknown() []string {
	if m == nil {
		return nil
	}
	known := make(map[string]bool, len(Known))
	for _, k := range Known {
		known[k] = true
	}
	var out []string
	for name := range m.rules {
		if !known[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + username))
	return int(h.Sum32() % 100)
}
