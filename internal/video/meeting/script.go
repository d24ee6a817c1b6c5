package meeting

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// scriptURLFormat is the vendor's per-tenant embed script location.
const scriptURLFormat = "https://8x8.vc/%s/external_api.js"

// ScriptURL returns the embed script address for an application identifier.
func ScriptURL(appID string) string {
	return fmt.Sprintf(scriptURLFormat, appID)
}

// HTTPScriptLoader verifies the vendor embed script is reachable before a
// session attempt proceeds, so an outage or a bad application identifier
// surfaces as a script-loading failure instead of a silent hang later.
type HTTPScriptLoader struct {
	client *http.Client
}

// NewHTTPScriptLoader builds a loader with a bounded request timeout.
func NewHTTPScriptLoader(client *http.Client) *HTTPScriptLoader {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPScriptLoader{client: client}
}

func (l *HTTPScriptLoader) Load(ctx context.Context, appID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ScriptURL(appID), nil)
	if err != nil {
		return fmt.Errorf("build script probe request: %w", err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("vendor script unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("vendor script probe returned status %d", res.StatusCode)
	}
	return nil
}
