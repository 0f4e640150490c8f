package sitefixture

import (
	"fmt"
	"html"
	"net/http"
	"regexp"
	"time"

	"github.com/gorilla/mux"
)

// Page serves a fixed HTML document.
func Page(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><meta name=\"viewport\" "+
			"content=\"width=device-width\"></head><body>%s</body></html>\n", body)
	})
}

// UserAgentGate imitates a site that sniffs the user agent: browsers whose user agent matches
// supported get one page, everyone else gets the other. This is the kind of site a user agent
// override intervention fixes.
func UserAgentGate(supported *regexp.Regexp, supportedBody, unsupportedBody string) http.Handler {
	ok, blocked := Page(supportedBody), Page(unsupportedBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if supported.MatchString(r.UserAgent()) {
			ok.ServeHTTP(w, r)
			return
		}
		blocked.ServeHTTP(w, r)
	})
}

// Delayed returns markup that inserts element (an HTML fragment) into the body after delay,
// for testing that probes keep polling.
func Delayed(element string, delay time.Duration) string {
	return fmt.Sprintf(`<script>setTimeout(function () {
  var t = document.createElement("template");
  t.innerHTML = %q;
  document.body.appendChild(t.content);
}, %d);</script>`, element, delay.Milliseconds())
}

// Link returns an anchor element.
func Link(id, href, text string) string {
	return fmt.Sprintf(`<a id="%s" href="%s">%s</a>`, html.EscapeString(id), html.EscapeString(href),
		html.EscapeString(text))
}

// Hidden wraps a fragment in an element that is in the DOM but not displayed.
func Hidden(fragment string) string {
	return `<div style="display:none">` + fragment + `</div>`
}

// Routes serves a site made of several paths, relative to the site's base URL. Other paths get
// a 404.
func Routes(routes map[string]http.Handler) http.Handler {
	router := mux.NewRouter()
	for path, handler := range routes {
		router.Handle(path, handler)
	}
	return router
}

// Slow holds the response back for delay, or until the client gives up, before handing the
// request to handler.
func Slow(delay time.Duration, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			handler.ServeHTTP(w, r)
		case <-r.Context().Done():
		}
	})
}

// FetchThenInsert returns markup that requests path and inserts element into the body once the
// response has arrived. The page's load event does not wait for the request.
func FetchThenInsert(path, element string) string {
	return fmt.Sprintf(`<script>fetch(%q).then(function (r) { return r.text(); }).then(function () {
  var t = document.createElement("template");
  t.innerHTML = %q;
  document.body.appendChild(t.content);
});</script>`, path, element)
}

// Covered renders fragment underneath an opaque overlay that fills the viewport.
func Covered(fragment string) string {
	return fragment + `<div id="overlay" style="position:fixed;top:0;left:0;width:100%;height:100%;` +
		`z-index:1000;background:#fff"></div>`
}
