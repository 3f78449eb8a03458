//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/uispec/packages/browser"
	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
)

const suitePath = "../examples/burger/burger.yaml"

// burgerApp is the front-end under test. Its own /api/ingredients answers
// from the example fixtures so pass-through mode has a backend to reach.
type burgerApp struct {
	*httptest.Server
	apiHits atomic.Int64
}

func newBurgerApp(t *testing.T) *burgerApp {
	t.Helper()

	page, err := os.ReadFile(filepath.Join("testdata", "burger.html"))
	require.NoError(t, err)
	ingredients, err := os.ReadFile("../examples/burger/fixtures/ingredients.json")
	require.NoError(t, err)

	app := &burgerApp{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingredients", func(w http.ResponseWriter, r *http.Request) {
		app.apiHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(ingredients)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		app.apiHits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/favicon.ico", http.NotFound)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	app.Server = httptest.NewServer(mux)
	t.Cleanup(app.Close)
	return app
}

func launchBrowser(t *testing.T) *browser.Browser {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := browser.DefaultConfig()
	if bin := os.Getenv("UISPEC_CHROME_BIN"); bin != "" {
		cfg.Bin = bin
	}
	b, err := browser.Launch(ctx, cfg, nil)
	require.NoError(t, err, "launching Chrome")
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("browser close error: %v", err)
		}
	})
	return b
}

func pages(b *browser.Browser, origin string) runner.Launcher {
	return runner.LauncherFunc(func(ctx context.Context) (runner.Page, error) {
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		p.SetOrigin(origin)
		return p, nil
	})
}

func loadSuite(t *testing.T) *scenario.Suite {
	t.Helper()
	suite, err := scenario.Load(suitePath)
	require.NoError(t, err)
	return suite
}

// only keeps the named scenario.
func only(t *testing.T, suite *scenario.Suite, name string) {
	t.Helper()
	for _, sc := range suite.Scenarios {
		if sc.Name == name {
			suite.Scenarios = []*scenario.Scenario{sc}
			return
		}
	}
	t.Fatalf("no scenario %q in %s", name, suite.Path)
}

func withoutIntercept(suite *scenario.Suite, method, path string) {
	kept := suite.Intercepts[:0]
	for _, ic := range suite.Intercepts {
		if ic.Method != method || ic.Path != path {
			kept = append(kept, ic)
		}
	}
	suite.Intercepts = kept
}
