package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	base := "https://www.example.com/shop/index.html"
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://cdn.example.net/a.js", "https://cdn.example.net/a.js", true},
		{"//cdn.example.net/a.js", "https://cdn.example.net/a.js", true},
		{"/static/app.js", "https://www.example.com/static/app.js", true},
		{"app.js", "https://www.example.com/shop/app.js", true},
		{"../img/logo.png", "https://www.example.com/img/logo.png", true},
		{"https://example.com/page#section", "https://example.com/page", true},
		{"wss://socket.example.com/live", "wss://socket.example.com/live", true},
		{"  /trim.js  ", "https://www.example.com/trim.js", true},
		{"data:image/png;base64,AAAA", "", false},
		{"javascript:void(0)", "", false},
		{"blob:https://example.com/uuid", "", false},
		{"chrome-extension://abc/script.js", "", false},
		{"ftp://files.example.com/a", "", false},
		{"", "", false},
		{"#", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeURL(tt.raw, base)
		assert.Equal(t, tt.ok, ok, "NormalizeURL(%q)", tt.raw)
		assert.Equal(t, tt.want, got, "NormalizeURL(%q)", tt.raw)
	}
}

func TestNormalizeURL_RelativeWithoutBase(t *testing.T) {
	t.Parallel()

	_, ok := NormalizeURL("/static/app.js", "")
	assert.False(t, ok)
}

func TestIsJavaScript(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/app.js", true},
		{"https://example.com/app.mjs?v=3", true},
		{"https://example.com/component.jsx", true},
		{"https://api.example.com/data?callback=handle", true},
		{"https://api.example.com/feed?jsonp=cb1", true},
		{"https://cdn.example.com/static/js/main.4f2a", true},
		{"https://cdn.example.com/libs/jquery", true},
		{"https://www.googletagmanager.com/gtag/js?id=G-1", true},
		{"https://example.com/style.css", false},
		{"https://example.com/static/js/logo.png", false},
		{"https://example.com/index.html", false},
		{"https://example.com/api/users", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsJavaScript(tt.url), "IsJavaScript(%q)", tt.url)
	}
}
