package intercept

import (
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Attach routes every request the page issues through the rule set.
// Matched requests are fulfilled from fixtures without touching the network,
// blocked ones fail with a blocked-by-client error so the application never
// hangs on them, and the rest continue unchanged. Call stop to detach.
func Attach(page *rod.Page, set *RuleSet) (stop func() error, err error) {
	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		set.handleHijack(h)
	}); err != nil {
		return nil, err
	}
	go router.Run()
	return router.Stop, nil
}

func (s *RuleSet) handleHijack(h *rod.Hijack) {
	u := h.Request.URL()
	out := s.Resolve(&Request{
		Method: h.Request.Method(),
		Path:   u.Path,
		Body:   []byte(h.Request.Body()),
	})

	switch {
	case out.Err != nil:
		s.logger.Error("fixture source failed", "url", u.String(), "error", out.Err)
		h.Response.Payload().ResponseCode = http.StatusInternalServerError
		h.Response.SetBody(out.Err.Error())
	case out.Matched():
		f := out.Fixture
		h.Response.Payload().ResponseCode = f.Status()
		pairs := []string{"Content-Type", f.ContentType(), "Access-Control-Allow-Origin", "*"}
		for k, v := range f.Headers() {
			pairs = append(pairs, k, v)
		}
		h.Response.SetHeader(pairs...)
		h.Response.SetBody(f.Body())
	case out.Preflight:
		h.Response.Payload().ResponseCode = http.StatusNoContent
		h.Response.SetHeader(
			"Access-Control-Allow-Origin", "*",
			"Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS",
			"Access-Control-Allow-Headers", "Accept, Authorization, Content-Type",
		)
	case out.Blocked:
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
	default:
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}
}
