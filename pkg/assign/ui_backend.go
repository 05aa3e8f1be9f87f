package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/enroll/pkg/config"
	"github.com/entrhq/enroll/pkg/logging"
)

// Portal is a frame of the console that can be driven element by element.
// *browser.Portal satisfies it.
type Portal interface {
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Clear(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, delay time.Duration) error
	Text(ctx context.Context, selector string) (string, error)
}

// PortalOpener navigates to a console page and returns its main portal frame.
type PortalOpener interface {
	OpenPortal(ctx context.Context, url string) (Portal, error)
}

const clearSearchTimeout = time.Second

// UIBackend assigns devices by clicking through the console. It identifies
// the target server by its display name and never yields an activity id.
type UIBackend struct {
	opener    PortalOpener
	sessions  Sessions
	target    Target
	deviceURL string
	selectors config.SelectorConfig
	policy    config.PolicyConfig
	sleep     Sleeper
	logger    *logging.Logger
}

// NewUIBackend creates a backend assigning to the server named companyName.
func NewUIBackend(opener PortalOpener, sessions Sessions, cfg *config.Config, logger *logging.Logger) *UIBackend {
	if logger == nil {
		logger = logging.Discard()
	}
	return &UIBackend{
		opener:    opener,
		sessions:  sessions,
		target:    Target{Name: cfg.ABM.CompanyName},
		deviceURL: cfg.ABM.DeviceURL,
		selectors: cfg.Selectors,
		policy:    cfg.Policy,
		sleep:     SleepContext,
		logger:    logger,
	}
}

func (b *UIBackend) Target() Target {
	return b.target
}

// Prepare logs in if needed and opens the device list.
func (b *UIBackend) Prepare(ctx context.Context, req Request) error {
	if err := b.sessions.Renew(ctx); err != nil {
		return err
	}
	_, err := b.opener.OpenPortal(ctx, b.deviceURL)
	return err
}

// KeepAlive is a no-op: driving the page keeps the session alive.
func (b *UIBackend) KeepAlive(ctx context.Context, req Request) error {
	return nil
}

// Lookup searches the device list for the serial, opens the matching row and
// reads the MDM server label. A row that never appears is a NotFoundError.
func (b *UIBackend) Lookup(ctx context.Context, req Request) (Device, error) {
	portal, err := b.opener.OpenPortal(ctx, b.deviceURL)
	if err != nil {
		return Device{}, err
	}
	sel := b.selectors

	if err := portal.WaitVisible(ctx, sel.SearchInput, b.policy.SearchInputTimeout); err != nil {
		return Device{}, err
	}
	if err := b.typeSearch(ctx, portal, req.Serial); err != nil {
		return Device{}, err
	}

	row := fmt.Sprintf(sel.SearchResult, req.Serial)
	_, found, err := Poll(ctx, b.policy.SearchRetries, 0, b.sleep, func(ctx context.Context, attempt int) (Step[struct{}], error) {
		if attempt > 1 {
			b.clearSearch(ctx, portal, req.Mark)
			if err := b.typeSearch(ctx, portal, req.Serial); err != nil {
				return Step[struct{}]{}, err
			}
		}
		if err := portal.WaitVisible(ctx, row, b.policy.SearchResultTimeout); err != nil {
			b.logger.Warnf("%s|>>  Attempt count %d failed. Retrying...", req.Mark, attempt)
			return Continue[struct{}](), nil
		}
		return Terminal(struct{}{}), nil
	})
	if err != nil {
		return Device{}, err
	}
	if !found {
		return Device{}, &NotFoundError{Serial: req.Serial, Attempts: b.policy.SearchRetries}
	}

	if err := portal.Click(ctx, row); err != nil {
		return Device{}, err
	}
	if err := portal.WaitVisible(ctx, sel.MdmServerButton, b.policy.ElementVisibleTimeout); err != nil {
		return Device{}, err
	}
	name, err := portal.Text(ctx, sel.MdmServerButton)
	if err != nil {
		return Device{}, err
	}
	if name == "" {
		b.logger.Infof("%s|Wrong MDM server", req.Mark)
	}
	return Device{Serial: req.Serial, Found: true, Server: Target{Name: name}}, nil
}

func (b *UIBackend) typeSearch(ctx context.Context, portal Portal, serial string) error {
	// The console sometimes restores the previous term after a single clear
	for i := 0; i < 2; i++ {
		if err := portal.Clear(ctx, b.selectors.SearchInput); err != nil {
			return err
		}
	}
	return portal.Type(ctx, b.selectors.SearchInput, serial, b.policy.SearchTypeDelay)
}

func (b *UIBackend) clearSearch(ctx context.Context, portal Portal, mark string) {
	err := portal.WaitVisible(ctx, b.selectors.SearchClear, clearSearchTimeout)
	if err == nil {
		err = portal.Click(ctx, b.selectors.SearchClear)
	}
	if err != nil {
		b.logger.Warnf("%s|Device search clear failed.", mark)
	}
}

// Submit walks the "edit MDM server" dialog of the selected row.
func (b *UIBackend) Submit(ctx context.Context, req Request) (string, error) {
	portal, err := b.opener.OpenPortal(ctx, b.deviceURL)
	if err != nil {
		return "", err
	}
	b.logger.Infof("%s|Need for edit MDM server!!!", req.Mark)

	sel := b.selectors
	steps := []struct {
		name     string
		selector string
	}{
		{"operator", sel.OperatorButton},
		{"edit MDM server", sel.EditMdmMenuItem},
		{"assign dialog", sel.AssignDialog},
		{"continue", sel.ContinueButton},
		{"confirm", sel.ConfirmButton},
		{"complete", sel.CompleteButton},
	}
	for _, step := range steps {
		if err := portal.WaitVisible(ctx, step.selector, b.policy.ElementVisibleTimeout); err != nil {
			return "", fmt.Errorf("%s: %w", step.name, err)
		}
		if err := portal.Click(ctx, step.selector); err != nil {
			return "", fmt.Errorf("%s: %w", step.name, err)
		}
		b.logger.Infof("%s|press button: %s ok.", req.Mark, step.name)
	}
	return "", nil
}

// ActivityStatus is never needed: Submit returns no activity.
func (b *UIBackend) ActivityStatus(ctx context.Context, req Request, activityID string) (string, error) {
	return StatusComplete, nil
}

func (b *UIBackend) TenantStatus(ctx context.Context, req Request) error {
	return nil
}
