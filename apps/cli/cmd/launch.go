package cmd

import (
	"context"

	"github.com/abdul-hamid-achik/uispec/packages/browser"
	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
)

// pageLauncher opens every scenario page in its own incognito context of b,
// with session cookies scoped to origin.
func pageLauncher(b *browser.Browser, origin string) runner.Launcher {
	return runner.LauncherFunc(func(ctx context.Context) (runner.Page, error) {
		page, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		if origin != "" {
			page.SetOrigin(origin)
		}
		return page, nil
	})
}
