// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/z5labs/folio/pkg/datactx"
	"github.com/z5labs/folio/pkg/health"
	"github.com/z5labs/folio/pkg/render"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func newSite(t *testing.T, files map[string]string) *App {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for path, content := range files {
		err := afero.WriteFile(fsys, path, []byte(content), 0o644)
		if !assert.Nil(t, err) {
			t.FailNow()
		}
	}

	pages := NewPages(
		datactx.NewLoader(fsys),
		"/data",
		render.NewRenderer(fsys, "/templates"),
	)
	return NewApp(
		ServePages(pages),
		Readiness(health.DirExists(fsys, "/templates")),
	)
}

func serve(app *App, method, target string) *http.Response {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, nil)
	app.Handler().ServeHTTP(w, r)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	return string(b)
}

type loaderFunc func(context.Context, string) (datactx.Document, error)

func (f loaderFunc) Load(ctx context.Context, root string) (datactx.Document, error) {
	return f(ctx, root)
}

type templatesFunc func(context.Context) (*render.Templates, error)

func (f templatesFunc) Templates(ctx context.Context) (*render.Templates, error) {
	return f(ctx)
}

func indexTemplates(t *testing.T) *render.Renderer {
	t.Helper()

	fsys := afero.NewMemMapFs()
	err := afero.WriteFile(fsys, "/templates/pages/index.html", []byte("index"), 0o644)
	if !assert.Nil(t, err) {
		t.FailNow()
	}
	return render.NewRenderer(fsys, "/templates")
}

func TestApp_Run(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if it fails to create a listener", func(t *testing.T) {
			app := NewApp()

			listenErr := errors.New("failed to listen")
			app.listen = func(network, addr string) (net.Listener, error) {
				return nil, listenErr
			}

			err := app.Run(context.Background())
			if !assert.ErrorIs(t, err, listenErr) {
				return
			}
		})
	})

	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if the context.Context is cancelled", func(t *testing.T) {
			ls, err := net.Listen("tcp", "127.0.0.1:0")
			if !assert.Nil(t, err) {
				return
			}
			app := NewApp(Listener(ls))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err = app.Run(ctx)
			if !assert.Nil(t, err) {
				return
			}
		})
	})
}

func TestApp_Handler(t *testing.T) {
	files := map[string]string{
		"/data/site.json":                 `{"title":"Hi"}`,
		"/data/posts/intro.txt":           "hello there",
		"/templates/pages/index.html":     `{{.site.title}}`,
		"/templates/pages/about.html":     `{{template "partials/header" .}}{{.posts.intro}}`,
		"/templates/pages/broken.html":    `{{template "partials/missing" .}}`,
		"/templates/partials/header.html": `<h1>{{.site.title}}</h1>`,
	}

	t.Run("will render the index page", func(t *testing.T) {
		t.Run("if the root path is requested and the redirect is followed", func(t *testing.T) {
			srv := httptest.NewServer(newSite(t, files).Handler())
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Contains(t, readBody(t, resp), "Hi") {
				return
			}
		})

		t.Run("if the root path and the index page render the same markup", func(t *testing.T) {
			srv := httptest.NewServer(newSite(t, files).Handler())
			defer srv.Close()

			root, err := http.Get(srv.URL + "/")
			if !assert.Nil(t, err) {
				return
			}
			index, err := http.Get(srv.URL + "/index")
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, index.StatusCode, root.StatusCode) {
				return
			}
			if !assert.Equal(t, readBody(t, index), readBody(t, root)) {
				return
			}
		})
	})

	t.Run("will redirect to the default page", func(t *testing.T) {
		t.Run("if the root path is requested", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/")

			if !assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "/index", resp.Header.Get("Location")) {
				return
			}
		})
	})

	t.Run("will respond with 200", func(t *testing.T) {
		t.Run("if the page exists", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/about")

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.Equal(t, "<h1>Hi</h1>hello there", readBody(t, resp)) {
				return
			}
		})

		t.Run("if the page is requested with a trailing slash", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/about/")

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "<h1>Hi</h1>hello there", readBody(t, resp)) {
				return
			}
		})

		t.Run("if the data directory does not exist", func(t *testing.T) {
			resp := serve(newSite(t, map[string]string{
				"/templates/pages/index.html": `static`,
			}), http.MethodGet, "/index")

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "static", readBody(t, resp)) {
				return
			}
		})

		t.Run("if the liveness endpoint is requested", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/health/liveness")

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
		})

		t.Run("if the readiness endpoint is requested and templates exist", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/health/readiness")

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will respond with 404", func(t *testing.T) {
		t.Run("if the page does not exist", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/missing")

			if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "Template 'missing' not found or rendering failed", strings.TrimSpace(readBody(t, resp))) {
				return
			}
		})

		t.Run("if the page fails to render", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/broken")

			if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "Template 'broken' not found or rendering failed", strings.TrimSpace(readBody(t, resp))) {
				return
			}
		})

		t.Run("if the path has more than one segment", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodGet, "/posts/intro")

			if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will respond with 405", func(t *testing.T) {
		t.Run("if a page is requested with an unsupported method", func(t *testing.T) {
			resp := serve(newSite(t, files), http.MethodPost, "/index")

			if !assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow")) {
				return
			}
		})
	})

	t.Run("will respond with 500", func(t *testing.T) {
		t.Run("if the templates directory does not exist", func(t *testing.T) {
			resp := serve(newSite(t, map[string]string{
				"/data/site.json": `{"title":"Hi"}`,
			}), http.MethodGet, "/index")

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "Failed to load templates", strings.TrimSpace(readBody(t, resp))) {
				return
			}
		})

		t.Run("if the templates are unavailable without reading the data directory", func(t *testing.T) {
			loads := 0
			pages := NewPages(
				loaderFunc(func(ctx context.Context, root string) (datactx.Document, error) {
					loads++
					return nil, datactx.RootUnreadableError{Path: root, Cause: errors.New("permission denied")}
				}),
				"/data",
				render.NewRenderer(afero.NewMemMapFs(), "/templates"),
			)
			app := NewApp(ServePages(pages))

			resp := serve(app, http.MethodGet, "/index")

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "Failed to load templates", strings.TrimSpace(readBody(t, resp))) {
				return
			}
			if !assert.Equal(t, 0, loads) {
				return
			}
		})

		t.Run("if the data directory can not be loaded", func(t *testing.T) {
			pages := NewPages(
				loaderFunc(func(ctx context.Context, root string) (datactx.Document, error) {
					return nil, datactx.RootUnreadableError{Path: root, Cause: errors.New("permission denied")}
				}),
				"/data",
				indexTemplates(t),
			)
			app := NewApp(ServePages(pages))

			resp := serve(app, http.MethodGet, "/index")

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "Failed to load data files", strings.TrimSpace(readBody(t, resp))) {
				return
			}
		})

		t.Run("if the renderer fails unexpectedly", func(t *testing.T) {
			pages := NewPages(
				loaderFunc(func(ctx context.Context, root string) (datactx.Document, error) {
					return datactx.Document{}, nil
				}),
				"/data",
				templatesFunc(func(ctx context.Context) (*render.Templates, error) {
					return nil, context.Canceled
				}),
			)
			app := NewApp(ServePages(pages))

			resp := serve(app, http.MethodGet, "/index")

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will respond with 503", func(t *testing.T) {
		t.Run("if the readiness endpoint is requested and templates are missing", func(t *testing.T) {
			resp := serve(newSite(t, map[string]string{}), http.MethodGet, "/health/readiness")

			if !assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode) {
				return
			}
		})
	})
}

func TestRequestID(t *testing.T) {
	t.Run("will generate a request id", func(t *testing.T) {
		t.Run("if the request does not carry one", func(t *testing.T) {
			var seen string
			h := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index", nil))

			if !assert.NotEmpty(t, seen) {
				return
			}
			if !assert.Equal(t, seen, w.Header().Get(RequestIDHeader)) {
				return
			}
		})
	})

	t.Run("will keep the request id", func(t *testing.T) {
		t.Run("if the request carries one", func(t *testing.T) {
			var seen string
			h := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))

			r := httptest.NewRequest(http.MethodGet, "/index", nil)
			r.Header.Set(RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if !assert.Equal(t, "abc-123", seen) {
				return
			}
			if !assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader)) {
				return
			}
		})
	})
}

func TestTrimTrailingSlash(t *testing.T) {
	testCases := []struct {
		Name     string
		Path     string
		Expected string
	}{
		{Name: "will keep the root path", Path: "/", Expected: "/"},
		{Name: "will keep a path without a trailing slash", Path: "/about", Expected: "/about"},
		{Name: "will trim a single trailing slash", Path: "/about/", Expected: "/about"},
		{Name: "will trim repeated trailing slashes", Path: "/about//", Expected: "/about"},
		{Name: "will map repeated slashes to the root path", Path: "//", Expected: "/"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, func(t *testing.T) {
			var seen string
			h := trimTrailingSlash(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.URL.Path
			}))

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.URL.Path = testCase.Path
			h.ServeHTTP(httptest.NewRecorder(), r)

			assert.Equal(t, testCase.Expected, seen)
		})
	}
}
