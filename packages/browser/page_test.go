package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSString(t *testing.T) {
	assert.Equal(t, `"refreshToken"`, jsString("refreshToken"))
	assert.Equal(t, `"a\"b\u003c/script\u003e"`, jsString(`a"b</script>`))
}

func TestPage_CookieURL(t *testing.T) {
	p := newPage(nil, nil, "http://localhost:4000/", nil)
	assert.Equal(t, "http://localhost:4000/", p.cookieURL())

	p.SetOrigin("")
	assert.Equal(t, "http://localhost/", p.cookieURL())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.NoSandbox)
	assert.Empty(t, cfg.ControlURL)
}
