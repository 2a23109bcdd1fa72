// Package sanitizer strips HTML from untrusted form input before it is
// embedded in outbound email bodies.
package sanitizer

import (
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once
)

// StripHTML removes all HTML elements and attributes, returning plain text.
// Contact-form fields are plain text by contract; anything that looks like
// markup is hostile input and is dropped, including scripts, event handlers,
// and javascript: URLs.
//
// The sanitizer entity-escapes the surviving text, so the output is
// unescaped again: callers feed it into mail headers and text/plain bodies,
// where &amp; or &#39; would reach the reader verbatim.
func StripHTML(s string) string {
	initOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(strictPolicy.Sanitize(s))
}
