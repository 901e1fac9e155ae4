package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	atapi "github.com/mehanizm/airtable"
	"go.uber.org/zap"

	"sitter-link/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL, BaseID: "app1", APIKey: "key", ReadRetries: 1, RateLimit: 1000}, zap.NewNop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	c.backoff = 0
	return c
}

func requestRecord() map[string]any {
	return map[string]any{
		"id": "recABC",
		"fields": map[string]any{
			"Parent ID":             "u1",
			"Parent First Name":     "Dana",
			"Parent Last Name":      "Scully",
			"Parent Email":          "dana@example.com",
			"Babysitter":            []any{"recSIT"},
			"Babysitter First Name": []any{"Jane"},
			"Babysitter Mobile":     []any{"+15551234567"},
			"Date":                  "2024-05-03",
			"Time Range":            "6-10pm",
			"Status":                "Pending",
		},
	}
}

func TestVerifyBabysitterRequest_Match(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if r.URL.Path != "/app1/Babysitter Requests/recABC" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(requestRecord())
	})

	req, err := c.VerifyBabysitterRequest(context.Background(), "recABC", "(555) 123-4567")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if req == nil {
		t.Fatalf("expected request")
	}
	if req.BabysitterFirstName != "Jane" || req.BabysitterID != "recSIT" {
		t.Fatalf("expected lookup fields unwrapped, got %+v", req)
	}
	if req.Parent == nil || req.Parent.FirstName != "Dana" || req.Parent.Email != "dana@example.com" {
		t.Fatalf("unexpected parent: %+v", req.Parent)
	}
}

func TestVerifyBabysitterRequest_MismatchAndNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/app1/Babysitter Requests/recMISSING" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"NOT_FOUND"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(requestRecord())
	})

	req, err := c.VerifyBabysitterRequest(context.Background(), "recABC", "555-999-0000")
	if err != nil || req != nil {
		t.Fatalf("expected nil request on mismatch, got %+v, %v", req, err)
	}
	req, err = c.VerifyBabysitterRequest(context.Background(), "recMISSING", "555-123-4567")
	if err != nil || req != nil {
		t.Fatalf("expected nil request on 404, got %+v, %v", req, err)
	}
}

func TestVerifyBabysitterRequest_MalformedMobile(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	if _, err := c.VerifyBabysitterRequest(context.Background(), "recABC", "12"); !errors.Is(err, ErrMalformedMobile) {
		t.Fatalf("expected ErrMalformedMobile, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no remote call for malformed mobile")
	}
}

func TestReadRetriesOnceThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(requestRecord())
	})
	req, err := c.VerifyBabysitterRequest(context.Background(), "recABC", "5551234567")
	if err != nil || req == nil {
		t.Fatalf("expected retry to succeed, got %+v, %v", req, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestUpdateBabysitterResponse_NotRetried(t *testing.T) {
	var calls int32
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPatch || r.URL.Path != "/app1/Babysitter Requests" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.UpdateBabysitterResponse(context.Background(), "recABC", domain.ResponseUpdate{
		Status:   domain.StatusAvailable,
		Response: "Yes, I can babysit then",
	})
	var he *atapi.HTTPClientError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single write attempt, got %d", calls)
	}
	records, _ := got["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("expected one record in payload, got %+v", got)
	}
	rec, _ := records[0].(map[string]any)
	fields, _ := rec["fields"].(map[string]any)
	if rec["id"] != "recABC" || fields["Status"] != "Available" || fields["Response"] != "Yes, I can babysit then" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestListBabysitters_FollowsOffset(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if f := r.URL.Query().Get("filterByFormula"); f != "{Parent ID} = 'u\\'1'" {
			t.Errorf("unexpected formula %q", f)
		}
		if s := r.URL.Query().Get("sort[0][field]"); s != "First Name" {
			t.Errorf("unexpected sort %q", s)
		}
		if r.URL.Query().Get("offset") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"records": []any{map[string]any{"id": "rec1", "fields": map[string]any{"First Name": "Jane"}}},
				"offset":  "page2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []any{map[string]any{"id": "rec2", "fields": map[string]any{"First Name": "Ann"}}},
		})
	})

	list, err := c.ListBabysitters(context.Background(), "u'1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "rec1" || list[1].FirstName != "Ann" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestCreateRequests_Batches(t *testing.T) {
	var batches []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body atapi.Records
		_ = json.NewDecoder(r.Body).Decode(&body)
		batches = append(batches, len(body.Records))
		resp := atapi.Records{}
		for i, rec := range body.Records {
			resp.Records = append(resp.Records, &atapi.Record{ID: "rec" + string(rune('a'+i)), Fields: rec.Fields})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	input := make([]domain.BabysitterRequest, 12)
	for i := range input {
		input[i] = domain.BabysitterRequest{ParentID: "u1", BabysitterID: "recSIT", Date: "2024-05-03", TimeRange: "6-10pm"}
	}
	created, err := c.CreateRequests(context.Background(), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created) != 12 || len(batches) != 2 || batches[0] != 10 || batches[1] != 2 {
		t.Fatalf("unexpected batching: created=%d batches=%v", len(created), batches)
	}
	if created[0].Status != domain.StatusPending || created[0].BabysitterID != "recSIT" {
		t.Fatalf("unexpected created request: %+v", created[0])
	}
}
