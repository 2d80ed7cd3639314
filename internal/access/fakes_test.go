package access

import (
	"net/http"
	"net/http/httptest"
	"sync"
)

const testBaseURL = "http://192.168.1.20:5000"

// fakeDoer records every request and answers through do.
type fakeDoer struct {
	mu    sync.Mutex
	calls []string
	do    func(req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL.Path)
	f.mu.Unlock()

	return f.do(req)
}

func (f *fakeDoer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

// serve answers requests in process with h, so tests can use LAN style hosts
// that ParseScan accepts.
func serve(h http.HandlerFunc) *fakeDoer {
	return &fakeDoer{do: func(req *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Result(), nil
	}}
}

// failWith fails every request with err.
func failWith(err error) *fakeDoer {
	return &fakeDoer{do: func(req *http.Request) (*http.Response, error) {
		return nil, err
	}}
}

// routes answers by exact path. Unknown paths get a 404.
type routes map[string]func(w http.ResponseWriter, r *http.Request)

func (rt routes) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := rt[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}
}

func reply(status int, body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
