package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancelkit/cancelkit/internal/catalog"
	"github.com/cancelkit/cancelkit/internal/pending"
	"github.com/cancelkit/cancelkit/internal/render"
)

type fakeCatalogStore struct {
	subs       map[string]*catalog.Subscription
	categories map[string]*catalog.Category
	subcats    []*catalog.Category
}

func (f *fakeCatalogStore) GetSubscriptionBySlug(_ context.Context, slug string) (*catalog.Subscription, error) {
	return f.subs[slug], nil
}

func (f *fakeCatalogStore) ListSubscriptions(_ context.Context, _, _ int) ([]*catalog.Subscription, error) {
	var out []*catalog.Subscription
	for _, sub := range f.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeCatalogStore) TopSubscriptions(_ context.Context, limit int) ([]*catalog.Subscription, error) {
	return f.ListSubscriptions(nil, limit, 0)
}

func (f *fakeCatalogStore) SearchSubscriptions(_ context.Context, term string, _ int) ([]*catalog.Subscription, error) {
	var out []*catalog.Subscription
	for _, sub := range f.subs {
		if strings.Contains(strings.ToLower(sub.Name), strings.ToLower(term)) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) GetCategoryBySlug(_ context.Context, slug string) (*catalog.Category, error) {
	return f.categories[slug], nil
}

func (f *fakeCatalogStore) TopLevelCategories(_ context.Context) ([]*catalog.Category, error) {
	var out []*catalog.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCatalogStore) Subcategories(_ context.Context, _ uuid.UUID) ([]*catalog.Category, error) {
	return f.subcats, nil
}

type fakeTemplates struct{}

func (fakeTemplates) ResolveLetter(_ context.Context, _ catalog.TemplateOverrides) (string, error) {
	return catalog.DefaultTemplate(catalog.TemplateLetter), nil
}

func (fakeTemplates) ResolveEmail(_ context.Context, _ catalog.TemplateOverrides) (string, error) {
	return catalog.DefaultTemplate(catalog.TemplateEmail), nil
}

type fakeDispatcher struct {
	verifyErr   error
	handled     []*pending.Request
	summarySent bool
	lastContact pending.Contact
	lastIDs     []uuid.UUID
}

func (f *fakeDispatcher) HandleVerificationRequest(_ context.Context, contact pending.Contact, ids []uuid.UUID) (*pending.Request, error) {
	if contact.Email == "" || contact.FirstName == "" {
		return nil, pending.ErrMissingContact
	}
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.lastContact = contact
	f.lastIDs = ids
	return &pending.Request{Token: "tok", Contact: contact, SubscriptionIDs: ids}, nil
}

func (f *fakeDispatcher) HandleDeregisterRequest(_ context.Context, req *pending.Request) bool {
	f.handled = append(f.handled, req)
	return f.summarySent
}

type fakeQueue struct {
	tokens []string
	err    error
}

func (f *fakeQueue) Enqueue(_ context.Context, token string) error {
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, token)
	return nil
}

type fakePending struct {
	requests map[string]*pending.Request
}

func (f *fakePending) Lookup(_ context.Context, token string) (*pending.Request, error) {
	if req, ok := f.requests[token]; ok {
		return req, nil
	}
	return nil, pending.ErrNotFound
}

type fakeNotices struct {
	contacts []string
	requests []string
	err      error
}

func (f *fakeNotices) SendContactEmail(_ context.Context, name, email, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.contacts = append(f.contacts, title)
	return nil
}

func (f *fakeNotices) SendRequestEmail(_ context.Context, name, email, subscription, message string) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, subscription)
	return nil
}

type testServer struct {
	handler    http.Handler
	catalog    *fakeCatalogStore
	dispatcher *fakeDispatcher
	queue      *fakeQueue
	pending    *fakePending
	notices    *fakeNotices
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	netflix := &catalog.Subscription{
		ID: uuid.New(), Name: "Netflix", Slug: "netflix",
		SupportEmail: "support@netflix.example",
	}
	herald := &catalog.Subscription{
		ID: uuid.New(), Name: "Daily Herald", Slug: "daily-herald",
		SupportReplyNumber: "12345",
		SupportPostalCode:  "1000 AB",
		SupportCity:        "Amsterdam",
	}
	news := &catalog.Category{ID: uuid.New(), Name: "News", Slug: "news"}

	fc := &fakeCatalogStore{
		subs:       map[string]*catalog.Subscription{"netflix": netflix, "daily-herald": herald},
		categories: map[string]*catalog.Category{"news": news},
		subcats:    []*catalog.Category{{ID: uuid.New(), Name: "Newspapers", Slug: "newspapers"}},
	}
	dispatcher := &fakeDispatcher{summarySent: true}
	queue := &fakeQueue{}
	pendingStore := &fakePending{requests: map[string]*pending.Request{}}
	notices := &fakeNotices{}

	h := NewHandlers(HandlersConfig{
		Catalog:    fc,
		Templates:  fakeTemplates{},
		Engine:     render.NewEngine(),
		Dispatcher: dispatcher,
		Queue:      queue,
		Pending:    pendingStore,
		Notices:    notices,
	})
	return &testServer{
		handler:    SetupRoutes(h),
		catalog:    fc,
		dispatcher: dispatcher,
		queue:      queue,
		pending:    pendingStore,
		notices:    notices,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestListSubscriptions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Subscriptions []*catalog.Subscription `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Subscriptions, 2)
}

func TestSearchSubscriptions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions?search=herald", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Daily Herald")
	assert.NotContains(t, rec.Body.String(), "Netflix")
}

func TestGetSubscription(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions/netflix", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"netflix"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCategory(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/categories/news", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Newspapers")

	rec = ts.do(t, http.MethodGet, "/api/v1/categories/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewLetterFormats(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions/daily-herald/letter?format=text", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Daily Herald")
	assert.Contains(t, rec.Body.String(), "John")

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/daily-herald/letter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	// No converter configured in tests
	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/daily-herald/letter?format=docx", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/daily-herald/letter?format=rtf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/subscriptions/unknown/letter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewEmail(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/subscriptions/netflix/email", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Netflix")
	assert.Contains(t, rec.Body.String(), "support@netflix.example")
}

func TestRenderTemplate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/render", renderRequest{
		Template: "Hello {{ name }}",
		Context:  map[string]interface{}{"name": "World"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello World")
}

func TestRenderTemplateSyntaxError(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/render", renderRequest{
		Template: "{% if %}broken",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "syntax error")
}

func TestRenderTemplateRejectsIncludeTag(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/render", renderRequest{
		Template: `{% include "secret" %}`,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeregister(t *testing.T) {
	ts := newTestServer(t)

	id := uuid.New()
	rec := ts.do(t, http.MethodPost, "/api/v1/deregister", deregisterRequest{
		FirstName:       "Jane",
		Email:           "jane@example.com",
		SubscriptionIDs: []string{id.String(), "not-a-uuid"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The malformed id was dropped before dispatch
	require.Len(t, ts.dispatcher.lastIDs, 1)
	assert.Equal(t, id, ts.dispatcher.lastIDs[0])
}

func TestDeregisterMissingContact(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/deregister", deregisterRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeregisterSendFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.verifyErr = errors.New("ses down")

	rec := ts.do(t, http.MethodPost, "/api/v1/deregister", deregisterRequest{
		FirstName: "Jane",
		Email:     "jane@example.com",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerify(t *testing.T) {
	ts := newTestServer(t)
	ts.pending.requests["goodtoken"] = &pending.Request{Token: "goodtoken"}

	rec := ts.do(t, http.MethodGet, "/api/v1/verify/goodtoken", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.dispatcher.handled, 1)

	rec = ts.do(t, http.MethodGet, "/api/v1/verify/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifySummaryFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.summarySent = false
	ts.pending.requests["goodtoken"] = &pending.Request{Token: "goodtoken"}

	rec := ts.do(t, http.MethodGet, "/api/v1/verify/goodtoken", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEnqueueDispatch(t *testing.T) {
	ts := newTestServer(t)
	ts.pending.requests["goodtoken"] = &pending.Request{Token: "goodtoken"}

	rec := ts.do(t, http.MethodPost, "/api/v1/dispatch/goodtoken", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"goodtoken"}, ts.queue.tokens)

	rec = ts.do(t, http.MethodPost, "/api/v1/dispatch/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContact(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/contact", contactRequest{
		Name: "Jane", Email: "jane@example.com", Title: "Data fix", Message: "The address is wrong.",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Data fix"}, ts.notices.contacts)

	rec = ts.do(t, http.MethodPost, "/api/v1/contact", contactRequest{Name: "Jane"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestSubscription(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/subscriptions/request", subscriptionRequest{
		Name: "Jane", Email: "jane@example.com", Subscription: "Acme Streaming",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Acme Streaming"}, ts.notices.requests)

	rec = ts.do(t, http.MethodPost, "/api/v1/subscriptions/request", subscriptionRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
