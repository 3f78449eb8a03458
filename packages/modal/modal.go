// Package modal models a transient overlay dialog as a two-state machine.
//
// A modal starts Closed. Interacting with a trigger opens it; the close
// control or a click on the overlay closes it again. Navigating straight to a
// detail URL renders the same content without ever opening the modal.
// Assertions are existence based because the dialog is unmounted when
// closed, not hidden.
package modal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
)

// State is the lifecycle state of a modal.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// ErrInvalidTransition is returned for an operation the current state does
// not allow, such as closing a modal that is not open.
var ErrInvalidTransition = errors.New("invalid modal transition")

// CloseVia selects how an open modal is dismissed.
type CloseVia string

const (
	ViaControl CloseVia = "control"
	ViaOverlay CloseVia = "overlay"
)

// ParseCloseVia parses a close method name.
func ParseCloseVia(s string) (CloseVia, error) {
	switch v := CloseVia(strings.ToLower(strings.TrimSpace(s))); v {
	case ViaControl, "button", "":
		return ViaControl, nil
	case ViaOverlay:
		return ViaOverlay, nil
	default:
		return "", fmt.Errorf("unknown close method %q (use control or overlay)", s)
	}
}

// Definition locates the parts of a modal on the page.
type Definition struct {
	Name      string
	Container driver.Selector
	// Close is the explicit close control.
	Close driver.Selector
	// Overlay is the backdrop outside the content. It sits under other
	// elements, so it is clicked with force.
	Overlay driver.Selector
}

// Modal drives one modal on one page.
type Modal struct {
	def   Definition
	drv   *driver.Driver
	state State
}

// New returns a Closed modal.
func New(d *driver.Driver, def Definition) *Modal {
	return &Modal{def: def, drv: d}
}

// Name returns the definition name.
func (m *Modal) Name() string {
	return m.def.Name
}

// State returns the current state.
func (m *Modal) State() State {
	return m.state
}

// Reset puts the modal back to Closed, as after loading a new document.
func (m *Modal) Reset() {
	m.state = Closed
}

// AssertClosed waits until the modal content is absent from the document.
func (m *Modal) AssertClosed(ctx context.Context) error {
	if err := m.drv.Assert(ctx, m.def.Container, driver.NotExists()); err != nil {
		return fmt.Errorf("modal %s should be closed: %w", m.def.Name, err)
	}
	return nil
}

// AssertOpen waits until the modal is present and contains every text.
func (m *Modal) AssertOpen(ctx context.Context, expect ...string) error {
	preds := []driver.Predicate{driver.Exists()}
	for _, text := range expect {
		preds = append(preds, driver.Contains(text))
	}
	if err := m.drv.Assert(ctx, m.def.Container, driver.All(preds...)); err != nil {
		return fmt.Errorf("modal %s should be open: %w", m.def.Name, err)
	}
	return nil
}

// Open clicks trigger and waits for the modal to show expect.
func (m *Modal) Open(ctx context.Context, trigger driver.Selector, expect ...string) error {
	return m.OpenWith(ctx, trigger, driver.Click{}, expect...)
}

// OpenWith performs action on trigger and waits for the modal to show expect.
func (m *Modal) OpenWith(ctx context.Context, trigger driver.Selector, action driver.Action, expect ...string) error {
	if m.state != Closed {
		return m.invalid("open", Closed)
	}
	if err := m.AssertClosed(ctx); err != nil {
		return err
	}
	if err := m.drv.Interact(ctx, trigger, action); err != nil {
		return fmt.Errorf("open modal %s: %w", m.def.Name, err)
	}
	if err := m.AssertOpen(ctx, expect...); err != nil {
		return err
	}
	m.state = Open
	return nil
}

// Close dismisses the modal and waits for it to unmount.
func (m *Modal) Close(ctx context.Context, via CloseVia) error {
	if m.state != Open {
		return m.invalid("close", Open)
	}

	var err error
	switch via {
	case ViaControl:
		err = m.drv.Interact(ctx, m.def.Close, driver.Click{})
	case ViaOverlay:
		err = m.drv.Interact(ctx, m.def.Overlay, driver.Click{Force: true})
	default:
		return fmt.Errorf("close modal %s: unknown close method %q", m.def.Name, via)
	}
	if err != nil {
		return fmt.Errorf("close modal %s via %s: %w", m.def.Name, via, err)
	}
	if err := m.AssertClosed(ctx); err != nil {
		return err
	}
	m.state = Closed
	return nil
}

// Bypass visits a detail path directly. The modal must stay absent while
// content still shows every expected text.
func (m *Modal) Bypass(ctx context.Context, path string, content driver.Selector, expect ...string) error {
	if m.state != Closed {
		return m.invalid("bypass", Closed)
	}
	if err := m.drv.Visit(ctx, path); err != nil {
		return err
	}
	if err := m.AssertClosed(ctx); err != nil {
		return err
	}
	for _, text := range expect {
		if err := m.drv.Assert(ctx, content, driver.Contains(text)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Modal) invalid(op string, want State) error {
	return fmt.Errorf("%w: cannot %s modal %s while %s (must be %s)", ErrInvalidTransition, op, m.def.Name, m.state, want)
}
