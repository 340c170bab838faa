package mailpdf

import (
	"fmt"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser downloads a compatible Chromium binary if one is not
// already cached and returns the path to the executable. The binary is
// stored in ~/.cache/rod/browser (Unix) or %APPDATA%\rod\browser (Windows).
func resolveBrowser() (string, error) {
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("mailpdf: downloading browser: %w", err)
	}
	return path, nil
}

// execPath picks the browser binary for a converter configuration.
// An explicit path always wins; auto-download is consulted only when
// no path was given. An empty result lets chromedp search PATH.
func (c converterConfig) execPath() (string, error) {
	if c.chromePath != "" {
		return c.chromePath, nil
	}
	if !c.autoDownload {
		return "", nil
	}
	return c.resolveBrowser()
}
