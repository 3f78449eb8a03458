package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/session"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page is one scenario's tab. It is the DOM the driver queries, the store
// the session seeds, and the target of request interception.
type Page struct {
	page      *rod.Page
	incognito *rod.Browser
	origin    string
	logger    *slog.Logger

	mu      sync.Mutex
	scripts map[string]func() error
	stops   []func() error
	closed  bool
}

var (
	_ driver.DOM    = (*Page)(nil)
	_ session.Store = (*Page)(nil)
)

func newPage(p *rod.Page, incognito *rod.Browser, origin string, logger *slog.Logger) *Page {
	return &Page{
		page:      p,
		incognito: incognito,
		origin:    strings.TrimSuffix(origin, "/"),
		logger:    logger,
		scripts:   make(map[string]func() error),
	}
}

// SetOrigin sets the origin cookies are scoped to.
func (p *Page) SetOrigin(origin string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.origin = strings.TrimSuffix(origin, "/")
}

// Rod exposes the underlying page.
func (p *Page) Rod() *rod.Page {
	return p.page
}

// Intercept routes the page's requests through set until the page closes.
func (p *Page) Intercept(set *intercept.RuleSet) error {
	stop, err := intercept.Attach(p.page, set)
	if err != nil {
		return fmt.Errorf("failed to attach interception: %w", err)
	}
	p.mu.Lock()
	p.stops = append(p.stops, stop)
	p.mu.Unlock()
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *Page) QueryAll(ctx context.Context, css string) ([]driver.Node, error) {
	els, err := p.page.Context(ctx).Elements(css)
	if err != nil {
		return nil, err
	}
	nodes := make([]driver.Node, len(els))
	for i, el := range els {
		nodes[i] = element{el}
	}
	return nodes, nil
}

func (p *Page) SetCookie(ctx context.Context, name, value string) error {
	return p.page.Context(ctx).SetCookies([]*proto.NetworkCookieParam{{
		Name:  name,
		Value: value,
		URL:   p.cookieURL(),
		Path:  "/",
	}})
}

func (p *Page) DeleteCookie(ctx context.Context, name string) error {
	return proto.NetworkDeleteCookies{Name: name, URL: p.cookieURL()}.Call(p.page.Context(ctx))
}

// SetLocalValue writes a local storage entry before any application script
// runs on every document the page loads from now on, and into the current
// document if it already belongs to the origin.
func (p *Page) SetLocalValue(ctx context.Context, key, value string) error {
	k, v := jsString(key), jsString(value)
	remove, err := p.page.Context(ctx).EvalOnNewDocument(fmt.Sprintf("localStorage.setItem(%s, %s)", k, v))
	if err != nil {
		return err
	}

	p.mu.Lock()
	prev := p.scripts[key]
	p.scripts[key] = remove
	p.mu.Unlock()
	if prev != nil {
		_ = prev()
	}

	if p.onOrigin(ctx) {
		_, err = p.page.Context(ctx).Eval(`(k, v) => localStorage.setItem(k, v)`, key, value)
	}
	return err
}

func (p *Page) RemoveLocalValue(ctx context.Context, key string) error {
	p.mu.Lock()
	remove := p.scripts[key]
	delete(p.scripts, key)
	p.mu.Unlock()

	var errs []error
	if remove != nil {
		errs = append(errs, remove())
	}
	if p.onOrigin(ctx) {
		_, err := p.page.Context(ctx).Eval(`k => localStorage.removeItem(k)`, key)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close detaches interception and disposes the incognito context.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	stops := p.stops
	p.stops = nil
	p.mu.Unlock()

	var errs []error
	for _, stop := range stops {
		errs = append(errs, stop())
	}
	errs = append(errs, p.page.Close(), p.incognito.Close())
	return errors.Join(errs...)
}

func (p *Page) cookieURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.origin == "" {
		return "http://localhost/"
	}
	return p.origin + "/"
}

// onOrigin reports whether the current document can reach local storage.
func (p *Page) onOrigin(ctx context.Context) bool {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return false
	}
	return strings.HasPrefix(info.URL, "http://") || strings.HasPrefix(info.URL, "https://")
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type element struct {
	el *rod.Element
}

func (e element) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

// ForceClick dispatches the click from script, skipping the visibility and
// hit-test checks of a pointer click.
func (e element) ForceClick(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.click()`)
	return err
}
