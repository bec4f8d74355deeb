package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newCSRFHandler(t *testing.T, captured *string) http.Handler {
	t.Helper()
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = CSRFTokenFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func csrfCookieFrom(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			return c
		}
	}
	return nil
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/add-todo", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCSRFMiddleware_GET_IssuesTokenAndExposesIt(t *testing.T) {
	var token string
	handler := newCSRFHandler(t, &token)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/add-todo", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	cookie := csrfCookieFrom(w)
	if cookie == nil {
		t.Fatal("expected csrf cookie")
	}
	if len(cookie.Value) != 64 {
		t.Errorf("len(token) = %d, want 64", len(cookie.Value))
	}
	if token != cookie.Value {
		t.Errorf("context token = %q, want cookie value %q", token, cookie.Value)
	}
}

func TestCSRFMiddleware_GET_ReusesExistingCookie(t *testing.T) {
	var token string
	handler := newCSRFHandler(t, &token)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if csrfCookieFrom(w) != nil {
		t.Error("cookie should not be reissued")
	}
	if token != "existing" {
		t.Errorf("context token = %q, want %q", token, "existing")
	}
}

func TestCSRFMiddleware_POST(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		formToken  string
		header     string
		wantStatus int
	}{
		{name: "matching form field", cookie: "tok", formToken: "tok", wantStatus: http.StatusOK},
		{name: "matching header", cookie: "tok", header: "tok", wantStatus: http.StatusOK},
		{name: "missing cookie", formToken: "tok", wantStatus: http.StatusForbidden},
		{name: "missing submitted token", cookie: "tok", wantStatus: http.StatusForbidden},
		{name: "mismatch", cookie: "tok", formToken: "other", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{"description": {"Learn Testing123"}}
			if tt.formToken != "" {
				values.Set(CSRFFormField, tt.formToken)
			}
			req := postForm(values)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()

			newCSRFHandler(t, nil).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCSRFMiddleware_POST_FormStillReadable(t *testing.T) {
	var description string
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		description = r.FormValue("description")
	}))

	req := postForm(url.Values{"description": {"Learn Testing123"}, CSRFFormField: {"tok"}})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if description != "Learn Testing123" {
		t.Errorf("description = %q, want form value preserved", description)
	}
}

func TestIsSafeMethod(t *testing.T) {
	for method, want := range map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
		http.MethodPost:    false,
		http.MethodDelete:  false,
	} {
		if got := isSafeMethod(method); got != want {
			t.Errorf("isSafeMethod(%s) = %v, want %v", method, got, want)
		}
	}
}
