package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Portal is a frame of the console with the DOM primitives used by the UI
// backend.
type Portal struct {
	frame playwright.Frame
}

// WaitVisible waits until selector matches a visible element.
func (p *Portal) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.frame.WaitForSelector(selector, playwright.FrameWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// Click clicks the element matching selector.
func (p *Portal) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.frame.Click(selector); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Clear focuses the input and empties it.
func (p *Portal) Clear(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.frame.Focus(selector); err != nil {
		return fmt.Errorf("focus %s: %w", selector, err)
	}
	if err := p.frame.Fill(selector, ""); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	return nil
}

// Type types text one key at a time with delay between keys.
func (p *Portal) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.frame.Type(selector, text, playwright.FrameTypeOptions{
		Delay: millis(delay),
	})
	if err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Text returns the trimmed text content of selector.
func (p *Portal) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := p.frame.TextContent(selector)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}
