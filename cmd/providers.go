package cmd

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

// ProvidersCmd lists providers, optionally only those with a capability.
type ProvidersCmd struct {
	Capability string `short:"c" help:"Only list providers with this capability"`
	Format     string `short:"F" help:"Output format" enum:"yaml,json" default:"yaml"`
}

type providerView struct {
	ID           string                  `json:"id" yaml:"id"`
	Name         string                  `json:"name" yaml:"name"`
	Capabilities []enrichment.Capability `json:"capabilities" yaml:"capabilities"`
	Identifiers  []identifier.Kind       `json:"identifiers" yaml:"identifiers"`
	Priority     int                     `json:"priority,omitempty" yaml:"priority,omitempty"`
}

func (p *ProvidersCmd) Run() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	providers := a.service.Providers()
	if p.Capability != "" {
		c, ok := enrichment.ParseCapability(p.Capability)
		if !ok {
			names := make([]string, len(enrichment.AllCapabilities))
			for i, c := range enrichment.AllCapabilities {
				names[i] = string(c)
			}
			return fmt.Errorf("unknown capability %q; valid capabilities are: %s", p.Capability, strings.Join(names, ", "))
		}
		providers = a.service.ProvidersSupporting(c)
	}

	order := a.settings.Current().EffectiveOrder()
	views := make([]providerView, 0, len(providers))
	for _, prov := range providers {
		v := providerView{
			ID:           prov.ID(),
			Name:         prov.Name(),
			Capabilities: prov.Capabilities().List(),
			Identifiers:  prov.SupportedIdentifiers(),
		}
		for i, id := range order {
			if id == prov.ID() {
				v.Priority = i + 1
				break
			}
		}
		views = append(views, v)
	}
	return printValue(stdout, views, p.Format)
}
