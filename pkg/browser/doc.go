// Package browser drives the console through a persistent Chromium context
// using playwright-go.
//
// A Driver owns one browser context and one page for the whole process.
// It logs in through the authentication iframe, probes for the main portal
// frame, captures the cookie jar over the DevTools protocol, and records the
// session identifier carried by console traffic so the session Manager can
// pull it at checkpoints.
//
// Portal wraps the main portal frame with the small set of DOM primitives the
// UI assignment backend uses: wait for a visible element, click, clear, type
// with a per-key delay and read text.
//
// Example usage:
//
//	driver := browser.NewDriver(cfg, logger)
//	if err := driver.Connect(ctx); err != nil {
//	    return err
//	}
//	defer driver.Close()
//
//	if !driver.IsLoggedIn(ctx) {
//	    if err := driver.Login(ctx); err != nil {
//	        return err
//	    }
//	}
//	cookies, err := driver.Cookies(ctx)
package browser
