package failure

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssertionFailure_Message(t *testing.T) {
	err := &AssertionFailure{
		Selector: "ul:nth-of-type(1) li",
		Expected: "2 elements",
		Actual:   "0 elements",
		Waited:   4 * time.Second,
	}

	assert.Equal(t, "assertion failed on ul:nth-of-type(1) li: expected 2 elements, got 0 elements (waited 4s)", err.Error())
}

func TestUnmockedRequestFailure_Message(t *testing.T) {
	err := &UnmockedRequestFailure{Method: "GET", Path: "/api/orders/all"}
	assert.Equal(t, "unmocked request: GET /api/orders/all", err.Error())
}

func TestTimeoutFailure_Unwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &TimeoutFailure{Condition: "page load", After: time.Second, Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "page load")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"assertion", &AssertionFailure{}, KindAssertion},
		{"wrapped unmocked", fmt.Errorf("step 3: %w", &UnmockedRequestFailure{}), KindUnmocked},
		{"timeout", &TimeoutFailure{}, KindTimeout},
		{"joined prefers unmocked", errors.Join(&AssertionFailure{}, &UnmockedRequestFailure{}), KindUnmocked},
		{"plain", errors.New("boom"), KindError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
