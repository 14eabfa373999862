package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lepinkainen/bibsync/internal/settings"
)

// SettingsCmd groups the settings subcommands.
type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"" help:"Show the current settings"`
	Set  SettingsSetCmd  `cmd:"" help:"Change settings; only the given flags are changed"`
}

// SettingsShowCmd prints the settings.
type SettingsShowCmd struct {
	Format string `short:"F" help:"Output format" enum:"yaml,json" default:"yaml"`
}

type settingsView struct {
	settings.Settings `yaml:",inline"`
	EffectiveOrder    []string `json:"effectiveOrder" yaml:"effectiveOrder"`
}

func (s *SettingsShowCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	cur := a.settings.Current()
	return printValue(stdout, settingsView{Settings: cur, EffectiveOrder: cur.EffectiveOrder()}, s.Format)
}

// SettingsSetCmd updates the settings.
type SettingsSetCmd struct {
	PreferredSource string   `help:"Provider tried first" xor:"preferred"`
	ClearPreferred  bool     `help:"Clear the preferred provider" xor:"preferred"`
	Priority        []string `help:"Fallback order of provider IDs, comma separated"`
	EnableAutoSync  bool     `help:"Enable scheduled sync" xor:"autosync"`
	DisableAutoSync bool     `help:"Disable scheduled sync" xor:"autosync"`
	RefreshDays     int      `help:"Days before an enriched publication is refreshed, 0 leaves it unchanged"`
}

func (s *SettingsSetCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	known := make([]string, 0)
	for _, p := range a.service.Providers() {
		known = append(known, p.ID())
	}
	validate := func(id string) error {
		if !slices.Contains(known, id) {
			return fmt.Errorf("unknown provider %q; known providers are: %s", id, strings.Join(known, ", "))
		}
		return nil
	}

	changed := false
	if s.PreferredSource != "" || s.ClearPreferred {
		if s.PreferredSource != "" {
			if err := validate(s.PreferredSource); err != nil {
				return err
			}
		}
		if err := a.settings.SetPreferredSource(s.PreferredSource); err != nil {
			return err
		}
		changed = true
	}
	if len(s.Priority) > 0 {
		for _, id := range s.Priority {
			if err := validate(id); err != nil {
				return err
			}
		}
		if err := a.settings.SetSourcePriority(s.Priority); err != nil {
			return err
		}
		changed = true
	}
	if s.EnableAutoSync || s.DisableAutoSync {
		if err := a.settings.SetAutoSyncEnabled(s.EnableAutoSync); err != nil {
			return err
		}
		changed = true
	}
	if s.RefreshDays != 0 {
		if err := a.settings.SetRefreshIntervalDays(s.RefreshDays); err != nil {
			return err
		}
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to change; see --help for the available flags")
	}

	cur := a.settings.Current()
	return printValue(stdout, settingsView{Settings: cur, EffectiveOrder: cur.EffectiveOrder()}, "yaml")
}
