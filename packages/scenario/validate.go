package scenario

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/modal"
)

// Validate reports every structural problem in the suite at once.
func (s *Suite) Validate() error {
	var errs []error
	add := func(line int, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if line > 0 {
			msg = fmt.Sprintf("line %d: %s", line, msg)
		}
		errs = append(errs, errors.New(msg))
	}

	if s.Name == "" {
		add(0, "suite name is required")
	}
	if s.Unmocked != "" {
		if _, err := intercept.ParseMode(s.Unmocked); err != nil {
			add(0, "%v", err)
		}
	}
	if _, err := s.WaitTimeout(0); err != nil {
		add(0, "%v", err)
	}

	for _, ic := range s.Intercepts {
		if ic.Path == "" {
			add(ic.Line, "intercept is missing a path")
		}
		if m := strings.ToUpper(ic.Method); m != "" && m != "*" && !knownMethod(m) {
			add(ic.Line, "intercept %s: unknown method %q", ic.Path, ic.Method)
		}
		switch {
		case ic.Fixture == "" && ic.Generate == "":
			add(ic.Line, "intercept %s %s needs a fixture or a generator", ic.Method, ic.Path)
		case ic.Fixture != "" && ic.Generate != "":
			add(ic.Line, "intercept %s %s has both a fixture and a generator", ic.Method, ic.Path)
		}
		if ic.Status != 0 && (ic.Status < 100 || ic.Status > 599) {
			add(ic.Line, "intercept %s %s: invalid status %d", ic.Method, ic.Path, ic.Status)
		}
	}

	if s.Session != nil && s.Session.Fixture == "" {
		add(0, "session needs a token fixture")
	}

	for name, def := range s.Modals {
		if def.Container == "" || def.Close == "" {
			add(0, "modal %s needs a container and a close control", name)
		}
	}

	if len(s.Scenarios) == 0 {
		add(0, "suite has no scenarios")
	}
	seen := make(map[string]bool)
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			add(sc.Line, "scenario %d has no name", i+1)
		} else if seen[sc.Name] {
			add(sc.Line, "duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true

		if len(sc.Steps) == 0 && sc.Skip == "" {
			add(sc.Line, "scenario %q has no steps", sc.Name)
		}
		for j, st := range sc.Steps {
			if err := s.validateStep(st); err != nil {
				add(st.Line, "scenario %q step %d: %v", sc.Name, j+1, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (s *Suite) validateStep(st *Step) error {
	kinds := st.Kinds()
	switch len(kinds) {
	case 0:
		return errors.New("step has no action (use visit, click, assert, modal or request)")
	case 1:
	default:
		return fmt.Errorf("step mixes %s; split it into one step per action", strings.Join(kinds, " and "))
	}

	switch kinds[0] {
	case KindClick:
		if st.Click.Target == "" {
			return errors.New("click needs a target")
		}
	case KindAssert:
		a := st.Assert
		if a.Target == "" {
			return errors.New("assert needs a target")
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assert count %d is negative", *a.Count)
		}
		if a.Exists != nil && !*a.Exists && (a.Contains != "" || a.Equals != "" || a.Matches != "" || (a.Count != nil && *a.Count > 0)) {
			return errors.New("assert cannot check text or count on an absent target")
		}
		if a.Matches != "" {
			if _, err := regexp.Compile(a.Matches); err != nil {
				return fmt.Errorf("assert pattern: %w", err)
			}
		}
	case KindModal:
		m := st.Modal
		if _, ok := s.Modals[m.Name]; !ok {
			return fmt.Errorf("unknown modal %q", m.Name)
		}
		if m.actions() != 1 {
			return errors.New("modal step needs exactly one of open, close, bypass or closed")
		}
		if m.Close != "" {
			via, err := modal.ParseCloseVia(m.Close)
			if err != nil {
				return err
			}
			if via == modal.ViaOverlay && s.Modals[m.Name].Overlay == "" {
				return fmt.Errorf("modal %q has no overlay", m.Name)
			}
		}
	case KindRequest:
		r := st.Request
		if r.Path == "" {
			return errors.New("request needs a path")
		}
		if r.Count != nil && *r.Count < 0 {
			return fmt.Errorf("request count %d is negative", *r.Count)
		}
	}
	return nil
}

func knownMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
