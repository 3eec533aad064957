package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/model"
	"github.com/ananthjv/pixlift/internal/workflow"
)

func TestUploadRejectsLocallyExpiredGrant(t *testing.T) {
	c := New("http://unused", "tok")
	grant := &credential.Grant{
		URL:       "http://unused/raw",
		ExpiresAt: time.Now().Add(-time.Second),
	}
	// No network call should be needed to refuse a grant past its horizon.
	err := c.Upload(context.Background(), grant, []byte("data"))
	if !errors.Is(err, workflow.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestUploadMapsStoreRejection(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "request has expired", http.StatusForbidden)
	}))
	defer store.Close()

	c := New("http://unused", "tok")
	grant := &credential.Grant{URL: store.URL, ExpiresAt: time.Now().Add(time.Minute)}
	err := c.Upload(context.Background(), grant, []byte("data"))
	if !errors.Is(err, workflow.ErrExpiredCredential) {
		t.Fatalf("err = %v, want ErrExpiredCredential", err)
	}
}

func TestUploadSendsGrantHeaders(t *testing.T) {
	var gotOwner, gotMethod string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotOwner = r.Header.Get("X-Amz-Meta-Owner")
		w.WriteHeader(http.StatusOK)
	}))
	defer store.Close()

	c := New("http://unused", "tok")
	grant := &credential.Grant{
		URL:       store.URL,
		ExpiresAt: time.Now().Add(time.Minute),
		Headers:   map[string]string{"X-Amz-Meta-Owner": "alice"},
	}
	if err := c.Upload(context.Background(), grant, []byte("data")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("method = %s, want PUT", gotMethod)
	}
	if gotOwner != "alice" {
		t.Fatalf("owner header %q not sent verbatim", gotOwner)
	}
}

func TestLookupStates(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		switch r.URL.Path {
		case "/metadata/pending":
			w.WriteHeader(http.StatusNoContent)
		case "/metadata/other":
			http.Error(w, "forbidden", http.StatusForbidden)
		case "/metadata/done":
			_ = json.NewEncoder(w).Encode(model.MetadataRecord{
				AssetKey: "done", Owner: "alice", SavingsPercent: "12.00%",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer api.Close()
	c := New(api.URL, "tok")

	rec, err := c.Lookup(context.Background(), "pending")
	if err != nil || rec != nil {
		t.Fatalf("pending: rec=%v err=%v, want nil/nil", rec, err)
	}
	if _, err := c.Lookup(context.Background(), "other"); !errors.Is(err, metadata.ErrForbidden) {
		t.Fatalf("forbidden lookup err = %v", err)
	}
	rec, err = c.Lookup(context.Background(), "done")
	if err != nil || rec == nil || rec.SavingsPercent != "12.00%" {
		t.Fatalf("done: rec=%+v err=%v", rec, err)
	}
}

func TestIssueCarriesOptions(t *testing.T) {
	var got map[string]interface{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/credentials" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(credential.Grant{AssetKey: "k", URL: "http://store/raw"})
	}))
	defer api.Close()

	c := New(api.URL, "tok")
	req := model.NewUploadRequest("", "", 65, true)
	grant, err := c.Issue(context.Background(), req, "pic.png")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if grant.AssetKey != "k" {
		t.Fatalf("grant = %+v", grant)
	}
	if got["quality"].(float64) != 65 || got["keepOriginal"].(bool) != true || got["fileName"].(string) != "pic.png" {
		t.Fatalf("request body = %v", got)
	}
}
