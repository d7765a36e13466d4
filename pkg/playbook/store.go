// Package playbook loads organization-defined response playbooks from a
// YAML file and keeps them fresh while the console runs. The loaded set is
// swapped atomically; readers always see a complete, validated snapshot.
package playbook

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lucid-vigil/warden/pkg/defense"
	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Store holds the current playbook set and optionally watches the backing
// file for edits.
type Store struct {
	path      string
	logger    zerolog.Logger
	mu        sync.RWMutex
	playbooks []defense.Playbook
}

// playbookYAML is the wire shape of one playbook in the config file.
// Severity arrives as its spelling and is validated on load.
type playbookYAML struct {
	ID          string       `mapstructure:"id"`
	Name        string       `mapstructure:"name"`
	Category    string       `mapstructure:"category"`
	MinSeverity string       `mapstructure:"min_severity"`
	Enabled     bool         `mapstructure:"enabled"`
	Actions     []actionYAML `mapstructure:"actions"`
}

type actionYAML struct {
	Type    string                 `mapstructure:"type"`
	Enabled bool                   `mapstructure:"enabled"`
	Params  map[string]interface{} `mapstructure:"params"`
}

// NewStore creates a store backed by the YAML file at path. An empty path
// or a missing file means the built-in defaults are used.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:      path,
		logger:    logger.With().Str("component", "playbook_store").Logger(),
		playbooks: Defaults(),
	}
}

// Load reads and validates the playbook file, replacing the current set on
// success. Validation failures keep the previous set in place.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.logger.Info().Str("path", s.path).Msg("Playbook file not found, using defaults.")
		return nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("playbook: read %s: %w", s.path, err)
	}

	var raw []playbookYAML
	if err := v.UnmarshalKey("playbooks", &raw); err != nil {
		return fmt.Errorf("playbook: unmarshal: %w", err)
	}

	parsed := make([]defense.Playbook, 0, len(raw))
	for _, p := range raw {
		pb, err := parsePlaybook(p)
		if err != nil {
			return err
		}
		parsed = append(parsed, pb)
	}

	s.mu.Lock()
	s.playbooks = parsed
	s.mu.Unlock()

	s.logger.Info().Int("count", len(parsed)).Msg("Playbooks loaded.")
	return nil
}

// Watch reloads the playbook file whenever it changes, until ctx is done.
// A reload failure logs and keeps the last good set.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("playbook: watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("playbook: watch %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Load(); err != nil {
					s.logger.Error().Err(err).Msg("Playbook reload failed, keeping previous set.")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("Playbook watcher error.")
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Current returns a copy of the active playbook set.
func (s *Store) Current() []defense.Playbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]defense.Playbook, len(s.playbooks))
	copy(out, s.playbooks)
	return out
}

func parsePlaybook(p playbookYAML) (defense.Playbook, error) {
	if p.ID == "" {
		return defense.Playbook{}, fmt.Errorf("playbook: entry %q has no id", p.Name)
	}
	sev, err := evidence.ParseSeverity(p.MinSeverity)
	if err != nil {
		return defense.Playbook{}, fmt.Errorf("playbook %s: %w", p.ID, err)
	}
	actions := make([]defense.PlaybookAction, 0, len(p.Actions))
	for _, a := range p.Actions {
		actions = append(actions, defense.PlaybookAction{
			Type:    defense.ActionType(a.Type),
			Enabled: a.Enabled,
			Params:  a.Params,
		})
	}
	return defense.Playbook{
		ID:          p.ID,
		Name:        p.Name,
		Category:    evidence.Category(p.Category),
		MinSeverity: sev,
		Enabled:     p.Enabled,
		Actions:     actions,
	}, nil
}

// Defaults is the built-in playbook set used when no organization playbooks
// are configured. It is a pure function: every call returns fresh values,
// never shared mutable state.
func Defaults() []defense.Playbook {
	return []defense.Playbook{
		{
			ID:          "default-predator",
			Name:        "Predator escalation",
			Category:    evidence.CategoryPredator,
			MinSeverity: evidence.SeverityHigh,
			Enabled:     true,
			Actions: []defense.PlaybookAction{
				{Type: defense.TypeLockDevice, Enabled: true},
				{Type: defense.TypeLockscreenBlackout, Enabled: true},
				{Type: defense.TypeWalkieTalkieEnable, Enabled: true},
				{Type: defense.TypeScreenshotCapture, Enabled: true},
			},
		},
		{
			ID:          "default-selfharm",
			Name:        "Self-harm response",
			Category:    evidence.CategorySelfHarm,
			MinSeverity: evidence.SeverityHigh,
			Enabled:     true,
			Actions: []defense.PlaybookAction{
				{Type: defense.TypeLockDevice, Enabled: true},
				{Type: defense.TypeNotifyParents, Enabled: true},
			},
		},
		{
			ID:          "default-scam",
			Name:        "Scam containment",
			Category:    evidence.CategoryScam,
			MinSeverity: evidence.SeverityMedium,
			Enabled:     true,
			Actions: []defense.PlaybookAction{
				{Type: defense.TypeQuarantineNet, Enabled: true},
			},
		},
	}
}
