package main

import (
	"context"

	"github.com/entrhq/enroll/pkg/abm"
	"github.com/entrhq/enroll/pkg/assign"
	"github.com/entrhq/enroll/pkg/browser"
	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
	"github.com/entrhq/enroll/pkg/session"
)

// portalOpener adapts the driver to assign.PortalOpener.
type portalOpener struct {
	driver *browser.Driver
}

func (o portalOpener) OpenPortal(ctx context.Context, url string) (assign.Portal, error) {
	portal, err := o.driver.OpenPortal(ctx, url)
	if err != nil {
		return nil, err
	}
	return portal, nil
}

// newOrchestrator picks the backend named by abm.mode.
func newOrchestrator(cfg *config.Config, driver *browser.Driver, sessions *session.Manager, client *abm.Client, logger *logging.Logger) *assign.Orchestrator {
	var backend assign.Backend
	switch cfg.ABM.Mode {
	case config.ModeUI:
		backend = assign.NewUIBackend(portalOpener{driver: driver}, sessions, cfg, logger.With("ui"))
	default:
		backend = assign.NewAPIBackend(client, sessions, cfg.ABM.MdmServerID, logger.With("api"))
	}
	return assign.NewOrchestrator(backend, assign.PolicyFromConfig(cfg.Policy), logger)
}
