// Package sitefixture serves small local web sites that imitate the behaviour of real sites
// covered by intervention cases, so the browser layer can be tested without the network.
package sitefixture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/webcompat/interventions-harness/framework"
	"github.com/webcompat/interventions-harness/framework/helpers"

	"github.com/gorilla/mux"
)

const sitePathPrefix = "/sites/"

// the request channel is a bounded queue; if it is full, the handler drops the record rather
// than blocking
const requestChannelBufferSize = 20

// Server hosts any number of sites, each under its own base path.
type Server struct {
	server     *httptest.Server
	sites      map[string]*Site
	lastSiteID int
	logger     framework.Logger
	lock       sync.Mutex
}

// Site is one fixture site. Its handler sees request paths relative to the site's base URL.
type Site struct {
	owner       *Server
	id          string
	description string
	handler     http.Handler
	requests    chan Request
	logger      framework.Logger
	lock        sync.Mutex
	closing     sync.Once
}

// Request describes a request received by a site.
type Request struct {
	Method  string
	URL     url.URL
	Headers http.Header
	Body    []byte
}

// NewServer starts a server on a local port.
func NewServer(logger framework.Logger) *Server {
	if logger == nil {
		logger = framework.NullLogger()
	}
	s := &Server{sites: make(map[string]*Site), logger: logger}
	router := mux.NewRouter()
	router.Methods(http.MethodHead).Path("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.PathPrefix(sitePathPrefix + "{id}").HandlerFunc(s.serveSite)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Printf("Received request for unrecognized URL path %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})
	s.server = httptest.NewServer(router)
	return s
}

// URL is the server's root URL.
func (s *Server) URL() string { return s.server.URL }

// Close stops the server.
func (s *Server) Close() { s.server.Close() }

// AddSite registers a site. The handler also receives requests for any subpath of the site's
// base URL, with the URL rewritten so that the handler sees only the subpath.
func (s *Server) AddSite(description string, handler http.Handler) *Site {
	site := &Site{
		owner:       s,
		description: description,
		handler:     handler,
		requests:    make(chan Request, requestChannelBufferSize),
		logger:      s.logger,
	}
	s.lock.Lock()
	s.lastSiteID++
	site.id = strconv.Itoa(s.lastSiteID)
	s.sites[site.id] = site
	s.lock.Unlock()
	return site
}

func (s *Server) serveSite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.lock.Lock()
	site := s.sites[id]
	s.lock.Unlock()
	if site == nil {
		s.logger.Printf("Received request for unrecognized site %s", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			s.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	subpath := r.URL.Path[len(sitePathPrefix+id):]
	if subpath == "" {
		subpath = "/"
	}
	u := *r.URL
	u.Path = subpath
	transformed := r.Clone(r.Context())
	transformed.URL = &u
	transformed.Body = io.NopCloser(bytes.NewReader(body))

	site.lock.Lock()
	requests := site.requests
	site.lock.Unlock()
	if requests == nil {
		s.logger.Printf("Received request to already-closed site %s", r.URL)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !helpers.NonBlockingSend(requests, Request{Method: r.Method, URL: u, Headers: r.Header, Body: body}) {
		s.logger.Printf("Request channel was full for %s", r.URL)
	}

	site.handler.ServeHTTP(w, transformed)
}

// BaseURL is the site's address, ending in a slash.
func (site *Site) BaseURL() string {
	return site.owner.URL() + sitePathPrefix + site.id + "/"
}

// URL returns the address of a path within the site.
func (site *Site) URL(path string) string {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return site.BaseURL() + path
}

// AwaitRequest waits for the next request to the site.
func (site *Site) AwaitRequest(ctx context.Context, timeout time.Duration) (Request, error) {
	site.lock.Lock()
	requests := site.requests
	site.lock.Unlock()
	if requests == nil {
		return Request{}, fmt.Errorf("site %q is closed", site.description)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case r := <-requests:
		return r, nil
	case <-ctx.Done():
		return Request{}, fmt.Errorf("timed out waiting for a request to %q (%s)", site.description, site.BaseURL())
	}
}

// Close unregisters the site. Subsequent requests to it get a 404.
func (site *Site) Close() {
	site.closing.Do(func() {
		site.logger.Printf("Closing site %q (%s)", site.description, site.BaseURL())
		site.owner.lock.Lock()
		delete(site.owner.sites, site.id)
		site.owner.lock.Unlock()

		site.lock.Lock()
		site.requests = nil
		site.lock.Unlock()
	})
}
