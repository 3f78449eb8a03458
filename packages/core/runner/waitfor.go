package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"golang.org/x/time/rate"
)

// callPollInterval paces journal checks. The journal is in memory, so this
// only bounds how quickly a late request is noticed.
const callPollInterval = 25 * time.Millisecond

// waitForCalls polls the journal until the number of calls matching method
// and pattern satisfies want, or timeout passes.
func waitForCalls(ctx context.Context, set *intercept.RuleSet, method, pattern string, want driver.Cardinality, timeout time.Duration, obs driver.Observer) error {
	start := time.Now()
	defer func() {
		if obs != nil {
			obs.ObserveWait("request", time.Since(start))
		}
	}()

	if method == "" {
		method = "*"
	}
	desc := fmt.Sprintf("%s %s", method, pattern)

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var got int
	limiter := rate.NewLimiter(rate.Every(callPollInterval), 1)
	for {
		n, err := set.Count(method, pattern)
		if err != nil {
			return fmt.Errorf("request %s: %w", desc, err)
		}
		got = n
		if want.Satisfied(got) {
			return nil
		}
		if limiter.Wait(wctx) != nil {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return &failure.TimeoutFailure{Condition: "request " + desc, After: time.Since(start), Cause: err}
	}
	return &failure.AssertionFailure{
		Selector: "request " + desc,
		Expected: calls(want),
		Actual:   calls(driver.Exactly(got)),
		Waited:   time.Since(start),
	}
}

// calls phrases a cardinality as a call count: "1 call", "at least 1 call".
func calls(c driver.Cardinality) string {
	switch {
	case c.Max < 0:
		return "at least " + callCount(c.Min)
	case c.Min == c.Max:
		return callCount(c.Min)
	default:
		return fmt.Sprintf("%d to %s", c.Min, callCount(c.Max))
	}
}

func callCount(n int) string {
	if n == 1 {
		return "1 call"
	}
	return fmt.Sprintf("%d calls", n)
}
