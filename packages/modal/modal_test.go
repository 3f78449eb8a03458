package modal

import (
	"context"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/driver/drivertest"
	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	containerCSS = "#modals > div"
	closeCSS     = "#modals > div button"
	overlayCSS   = "#modals > div:last-child"
	firstBunCSS  = "ul:nth-of-type(1) > li:nth-of-type(1)"
)

var details = Definition{
	Name:      "details",
	Container: driver.CSS(containerCSS),
	Close:     driver.CSS(closeCSS),
	Overlay:   driver.CSS(overlayCSS),
}

// ingredientPage scripts a page where clicking the first bun mounts the
// details modal and either close path unmounts it.
func ingredientPage() (*drivertest.DOM, *drivertest.Node, *drivertest.Node) {
	dom := drivertest.NewDOM()
	unmount := func() {
		dom.Set(containerCSS)
		dom.Set(closeCSS)
		dom.Set(overlayCSS)
	}
	closeBtn := drivertest.NewNode("").OnClick(unmount)
	overlay := drivertest.NewNode("").OnClick(unmount)
	trigger := drivertest.NewNode("Краторная булка N-200i").OnClick(func() {
		dom.SetText(containerCSS, "Детали ингредиента Краторная булка N-200i Калории, ккал 420")
		dom.Set(closeCSS, closeBtn)
		dom.Set(overlayCSS, overlay)
	})
	dom.Set(firstBunCSS, trigger)
	return dom, closeBtn, overlay
}

func newModal(dom driver.DOM) *Modal {
	d := driver.New(dom, driver.Options{
		BaseURL:      "http://localhost:4000",
		Timeout:      100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	return New(d, details)
}

func TestModal_InitialStateClosed(t *testing.T) {
	dom, _, _ := ingredientPage()
	m := newModal(dom)

	assert.Equal(t, Closed, m.State())
	require.NoError(t, m.AssertClosed(context.Background()))
}

func TestModal_OpenAndCloseViaControl(t *testing.T) {
	dom, closeBtn, overlay := ingredientPage()
	m := newModal(dom)
	ctx := context.Background()

	require.NoError(t, m.Open(ctx, driver.CSS(firstBunCSS), "Детали ингредиента", "Краторная булка N-200i"))
	assert.Equal(t, Open, m.State())

	require.NoError(t, m.Close(ctx, ViaControl))
	assert.Equal(t, Closed, m.State())
	assert.Equal(t, 1, closeBtn.Clicks())
	assert.Zero(t, overlay.Forced())
	require.NoError(t, m.AssertClosed(ctx))
}

func TestModal_CloseViaOverlayForcesClick(t *testing.T) {
	dom, closeBtn, overlay := ingredientPage()
	m := newModal(dom)
	ctx := context.Background()

	require.NoError(t, m.Open(ctx, driver.CSS(firstBunCSS), "Детали ингредиента"))
	require.NoError(t, m.Close(ctx, ViaOverlay))

	assert.Equal(t, Closed, m.State())
	assert.Equal(t, 1, overlay.Forced())
	assert.Zero(t, closeBtn.Clicks())
}

func TestModal_RoundTripRepeats(t *testing.T) {
	dom, _, _ := ingredientPage()
	m := newModal(dom)
	ctx := context.Background()

	for _, via := range []CloseVia{ViaControl, ViaOverlay, ViaControl} {
		require.NoError(t, m.Open(ctx, driver.CSS(firstBunCSS), "Детали ингредиента"))
		require.NoError(t, m.Close(ctx, via))
		require.NoError(t, m.AssertClosed(ctx))
	}
}

func TestModal_OpenMissingContent(t *testing.T) {
	dom, _, _ := ingredientPage()
	m := newModal(dom)

	err := m.Open(context.Background(), driver.CSS(firstBunCSS), "Флюоресцентная булка")

	var af *failure.AssertionFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, containerCSS, af.Selector)
	assert.Equal(t, Closed, m.State())
}

func TestModal_InvalidTransitions(t *testing.T) {
	dom, _, _ := ingredientPage()
	m := newModal(dom)
	ctx := context.Background()

	err := m.Close(ctx, ViaControl)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Open(ctx, driver.CSS(firstBunCSS)))
	assert.ErrorIs(t, m.Open(ctx, driver.CSS(firstBunCSS)), ErrInvalidTransition)
	assert.ErrorIs(t, m.Bypass(ctx, "/ingredients/1", driver.CSS("#root")), ErrInvalidTransition)

	m.Reset()
	assert.Equal(t, Closed, m.State())
}

func TestModal_Bypass(t *testing.T) {
	dom := drivertest.NewDOM()
	dom.OnNavigate(func(context.Context, string) error {
		dom.SetText("#root", "Детали ингредиента Краторная булка N-200i")
		return nil
	})
	m := newModal(dom)

	err := m.Bypass(context.Background(), "/ingredients/643d69a5c3f7b9001cfa093c", driver.CSS("#root"), "Краторная булка N-200i")
	require.NoError(t, err)
	assert.Equal(t, Closed, m.State())
	assert.Equal(t, []string{"http://localhost:4000/ingredients/643d69a5c3f7b9001cfa093c"}, dom.Visited())
}

func TestModal_BypassFailsWhenModalMounts(t *testing.T) {
	dom := drivertest.NewDOM()
	dom.OnNavigate(func(context.Context, string) error {
		dom.SetText(containerCSS, "Детали ингредиента")
		return nil
	})
	m := newModal(dom)

	err := m.Bypass(context.Background(), "/ingredients/1", driver.CSS("#root"))
	assert.Equal(t, failure.KindAssertion, failure.Classify(err))
}

func TestParseCloseVia(t *testing.T) {
	v, err := ParseCloseVia("Overlay")
	require.NoError(t, err)
	assert.Equal(t, ViaOverlay, v)

	v, err = ParseCloseVia("")
	require.NoError(t, err)
	assert.Equal(t, ViaControl, v)

	_, err = ParseCloseVia("escape")
	assert.Error(t, err)
}
