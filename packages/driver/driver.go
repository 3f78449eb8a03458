package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 4 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// Node is one element of the rendered document.
type Node interface {
	Text(ctx context.Context) (string, error)
	// Click performs a real pointer click.
	Click(ctx context.Context) error
	// ForceClick dispatches the click from script, reaching elements that
	// another element covers.
	ForceClick(ctx context.Context) error
}

// DOM is the page the driver works against.
type DOM interface {
	// Navigate loads url and returns once the document has loaded.
	Navigate(ctx context.Context, url string) error
	// QueryAll returns every element matching a CSS selector.
	QueryAll(ctx context.Context, css string) ([]Node, error)
}

// Observer is told how long each wait took.
type Observer interface {
	ObserveWait(op string, d time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op string, d time.Duration)

func (fn ObserverFunc) ObserveWait(op string, d time.Duration) {
	fn(op, d)
}

// Options configures a Driver.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	Observer     Observer
	Logger       *slog.Logger
}

// Driver runs the steps of one scenario against one page. It is not safe for
// concurrent use; steps are sequential by construction.
type Driver struct {
	dom  DOM
	opts Options
}

// New creates a driver over dom.
func New(dom DOM, opts Options) *Driver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Driver{dom: dom, opts: opts}
}

// Timeout returns the bound applied to each wait.
func (d *Driver) Timeout() time.Duration {
	return d.opts.Timeout
}

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (d *Driver) URL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if d.opts.BaseURL == "" {
		return "", fmt.Errorf("cannot visit %q: no base URL configured", path)
	}
	base, err := url.Parse(strings.TrimSuffix(d.opts.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", d.opts.BaseURL, err)
	}
	return base.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(ref.Path, "/"),
		RawQuery: ref.RawQuery,
		Fragment: ref.Fragment,
	}).String(), nil
}

// Visit navigates to path and waits for the document to load.
func (d *Driver) Visit(ctx context.Context, path string) error {
	target, err := d.URL(path)
	if err != nil {
		return err
	}

	start := time.Now()
	vctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	err = d.dom.Navigate(vctx, target)
	d.observe("visit", time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || vctx.Err() != nil {
			return &failure.TimeoutFailure{Condition: "page load of " + target, After: time.Since(start), Cause: err}
		}
		return fmt.Errorf("visit %s: %w", target, err)
	}
	d.opts.Logger.Debug("visited", "url", target)
	return nil
}

// Find waits until sel matches a number of elements satisfying want.
func (d *Driver) Find(ctx context.Context, sel Selector, want Cardinality) ([]Node, error) {
	var nodes []Node
	waited, err := d.poll(ctx, "find", func(ctx context.Context) (bool, error) {
		var err error
		nodes, err = d.resolve(ctx, sel)
		return err == nil && want.Satisfied(len(nodes)), err
	})
	if err != nil {
		return nil, d.waitFailure(sel, want.String(), elements(len(nodes)), waited, err)
	}
	return nodes, nil
}

// Action is something done to the elements a selector matched.
type Action interface {
	Perform(ctx context.Context, nodes []Node) error
	// AllowMultiple reports whether more than one target is acceptable.
	AllowMultiple() bool
	String() string
}

// Click clicks its targets.
type Click struct {
	// Force dispatches the click from script.
	Force bool
	// Multiple clicks every match instead of requiring exactly one.
	Multiple bool
}

func (c Click) Perform(ctx context.Context, nodes []Node) error {
	for i, n := range nodes {
		var err error
		if c.Force {
			err = n.ForceClick(ctx)
		} else {
			err = n.Click(ctx)
		}
		if err != nil {
			return fmt.Errorf("click element %d: %w", i+1, err)
		}
	}
	return nil
}

func (c Click) AllowMultiple() bool {
	return c.Multiple
}

func (c Click) String() string {
	switch {
	case c.Force && c.Multiple:
		return "force click all"
	case c.Force:
		return "force click"
	case c.Multiple:
		return "click all"
	default:
		return "click"
	}
}

// Interact finds the target of action and performs it. A target matching
// several elements is an error unless the action allows it.
func (d *Driver) Interact(ctx context.Context, sel Selector, action Action) error {
	start := time.Now()
	nodes, err := d.Find(ctx, sel, AtLeastOne)
	if err != nil {
		return err
	}
	if len(nodes) > 1 && !action.AllowMultiple() {
		return &failure.AssertionFailure{
			Selector: sel.String(),
			Expected: elements(1),
			Actual:   elements(len(nodes)),
			Waited:   time.Since(start),
		}
	}
	if err := action.Perform(ctx, nodes); err != nil {
		return fmt.Errorf("%s %s: %w", action, sel, err)
	}
	d.opts.Logger.Debug("interacted", "selector", sel.String(), "action", action.String(), "targets", len(nodes))
	return nil
}

// Assert waits until pred holds for the elements sel matches.
func (d *Driver) Assert(ctx context.Context, sel Selector, pred Predicate) error {
	actual := "nothing observed"
	waited, err := d.poll(ctx, "assert", func(ctx context.Context) (bool, error) {
		nodes, err := d.resolve(ctx, sel)
		if err != nil {
			return false, err
		}
		ok, got, err := pred.Check(ctx, nodes)
		if err != nil {
			return false, err
		}
		actual = got
		return ok, nil
	})
	if err != nil {
		return d.waitFailure(sel, pred.String(), actual, waited, err)
	}
	return nil
}

// resolve returns the matches of the first candidate that matches anything.
func (d *Driver) resolve(ctx context.Context, sel Selector) ([]Node, error) {
	candidates := sel.Candidates()
	if len(candidates) == 0 {
		return nil, errors.New("selector has no candidates")
	}
	for _, css := range candidates {
		nodes, err := d.dom.QueryAll(ctx, css)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", css, err)
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
	}
	return nil, nil
}

// errWaitExpired marks a poll that ran out of time.
var errWaitExpired = errors.New("wait expired")

// poll runs check until it reports done or the wait bound passes. Query
// errors are retried, since the document may be mid-navigation. When time
// runs out the last query error is returned, or errWaitExpired if the last
// check simply did not hold.
func (d *Driver) poll(ctx context.Context, op string, check func(context.Context) (bool, error)) (time.Duration, error) {
	start := time.Now()
	defer func() { d.observe(op, time.Since(start)) }()

	wctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(d.opts.PollInterval), 1)
	for limiter.Wait(wctx) == nil {
		if done, _ := check(wctx); done {
			return time.Since(start), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return time.Since(start), err
	}
	// The limiter gives up early when the next token lands past the
	// deadline; take one last look before failing.
	done, err := check(ctx)
	switch {
	case done:
		return time.Since(start), nil
	case err != nil:
		return time.Since(start), err
	default:
		return time.Since(start), errWaitExpired
	}
}

// waitFailure turns a failed poll into the matching failure type.
func (d *Driver) waitFailure(sel Selector, expected, actual string, waited time.Duration, err error) error {
	if errors.Is(err, errWaitExpired) {
		return &failure.AssertionFailure{Selector: sel.String(), Expected: expected, Actual: actual, Waited: waited}
	}
	return &failure.TimeoutFailure{Condition: expected + " at " + sel.String(), After: waited, Cause: err}
}

func (d *Driver) observe(op string, dur time.Duration) {
	if d.opts.Observer != nil {
		d.opts.Observer.ObserveWait(op, dur)
	}
}
