package main

import (
	"context"
	"fmt"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/config"
	"cascadebridge/internal/locator"
	"cascadebridge/internal/rpc"
)

// newLocator uses the configured endpoint when there is one and falls back to
// scanning processes.
func newLocator(c *config.Config) locator.BackendLocator {
	if c.HasStaticBackend() {
		return locator.Static{Endpoint: locator.Endpoint{Host: c.Backend.Host, Port: c.Backend.Port, Token: c.Backend.Token}}
	}
	return locator.NewProcessLocator(c.Backend.ProcessName, c.Backend.TokenFlag, c.Backend.Host)
}

// connectBackend discovers the language server and returns a cascade client for it.
func connectBackend(ctx context.Context, c *config.Config) (*cascade.Client, error) {
	client := rpc.New(newLocator(c), rpc.Options{
		AuthHeader: c.Backend.AuthHeader,
		Timeout:    c.GetCallTimeout(),
	})
	if err := client.Init(ctx); err != nil {
		return nil, fmt.Errorf("language server not reachable: %w", err)
	}
	return cascade.New(client, c.GetSessionLabel()), nil
}
