// Package drivertest provides an in-memory DOM for testing code built on the
// driver package without a browser.
package drivertest

import (
	"context"
	"sync"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
)

// Node is a scripted element.
type Node struct {
	mu      sync.Mutex
	text    string
	clicks  int
	forced  int
	onClick func()
	err     error
}

// NewNode returns a node with the given text.
func NewNode(text string) *Node {
	return &Node{text: text}
}

// OnClick runs fn after every successful click, forced or not.
func (n *Node) OnClick(fn func()) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onClick = fn
	return n
}

// FailClicks makes every click return err.
func (n *Node) FailClicks(err error) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
	return n
}

// SetText replaces the node text.
func (n *Node) SetText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.text = text
}

// Clicks returns the number of pointer clicks.
func (n *Node) Clicks() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clicks
}

// Forced returns the number of script-dispatched clicks.
func (n *Node) Forced() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.forced
}

func (n *Node) Text(context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.text, nil
}

func (n *Node) Click(context.Context) error {
	return n.click(&n.clicks)
}

func (n *Node) ForceClick(context.Context) error {
	return n.click(&n.forced)
}

func (n *Node) click(counter *int) error {
	n.mu.Lock()
	*counter++
	fn, err := n.onClick, n.err
	n.mu.Unlock()
	if err != nil {
		return err
	}
	if fn != nil {
		fn()
	}
	return nil
}

// DOM maps CSS queries to nodes. A query with no entry matches nothing.
type DOM struct {
	mu       sync.Mutex
	nodes    map[string][]*Node
	queries  map[string]int
	visited  []string
	queryErr error
	navigate func(ctx context.Context, url string) error
}

var _ driver.DOM = (*DOM)(nil)

// NewDOM returns an empty document.
func NewDOM() *DOM {
	return &DOM{
		nodes:   make(map[string][]*Node),
		queries: make(map[string]int),
	}
}

// Set makes css match nodes. No nodes unmounts whatever matched before.
func (d *DOM) Set(css string, nodes ...*Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[css] = nodes
}

// SetText makes css match one new node per text and returns them.
func (d *DOM) SetText(css string, texts ...string) []*Node {
	nodes := make([]*Node, len(texts))
	for i, t := range texts {
		nodes[i] = NewNode(t)
	}
	d.Set(css, nodes...)
	return nodes
}

// Clear unmounts everything.
func (d *DOM) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = make(map[string][]*Node)
}

// OnNavigate runs fn for every navigation.
func (d *DOM) OnNavigate(fn func(ctx context.Context, url string) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigate = fn
}

// FailQueries makes every query return err. A nil err restores queries.
func (d *DOM) FailQueries(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryErr = err
}

// Visited returns the navigated URLs in order.
func (d *DOM) Visited() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visited...)
}

// Queries returns how many times css was queried.
func (d *DOM) Queries(css string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queries[css]
}

func (d *DOM) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.visited = append(d.visited, url)
	fn := d.navigate
	d.mu.Unlock()
	if fn != nil {
		return fn(ctx, url)
	}
	return nil
}

func (d *DOM) QueryAll(_ context.Context, css string) ([]driver.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries[css]++
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	out := make([]driver.Node, len(d.nodes[css]))
	for i, n := range d.nodes[css] {
		out[i] = n
	}
	return out, nil
}
