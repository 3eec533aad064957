// Package client is the HTTP transport behind the upload workflow: it fetches
// credentials from the API, performs the presigned write against the object
// store, and polls the metadata endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/model"
	"github.com/ananthjv/pixlift/internal/workflow"
)

// Client talks to the PixLift API and the object store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a Client for the given API base URL and session token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Issue requests a write credential. Identity and role come from the session
// token server-side; the request's local copies are advisory.
func (c *Client) Issue(ctx context.Context, req model.UploadRequest, fileName string) (*credential.Grant, error) {
	body, err := json.Marshal(map[string]interface{}{
		"quality":      req.Quality,
		"keepOriginal": req.KeepOriginal,
		"fileName":     fileName,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal credential request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/credentials", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request credential: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("credential request failed: %s", readError(resp))
	}
	var grant credential.Grant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return &grant, nil
}

// Upload performs the presigned PUT. The grant's headers must be sent
// verbatim; they carry the signed caller context.
func (c *Client) Upload(ctx context.Context, grant *credential.Grant, data []byte) error {
	if !grant.ExpiresAt.IsZero() && time.Now().After(grant.ExpiresAt) {
		return workflow.ErrExpiredCredential
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	for k, v := range grant.Headers {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(data))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("object store write: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden {
		// The store rejects writes signed with an expired credential.
		return fmt.Errorf("%s: %w", readError(resp), workflow.ErrExpiredCredential)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("object store write rejected: %s", readError(resp))
	}
	return nil
}

// Lookup fetches the metadata record for an asset key. Absence is (nil, nil).
func (c *Client) Lookup(ctx context.Context, assetKey string) (*model.MetadataRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metadata/"+assetKey, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var rec model.MetadataRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		return &rec, nil
	case http.StatusNoContent:
		return nil, nil
	case http.StatusForbidden:
		return nil, fmt.Errorf("metadata lookup: %w", metadata.ErrForbidden)
	default:
		return nil, fmt.Errorf("metadata lookup failed: %s", readError(resp))
	}
}

// ListAll fetches every record; the API enforces the admin requirement.
func (c *Client) ListAll(ctx context.Context) ([]*model.MetadataRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metadata", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata list: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		var records []*model.MetadataRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode metadata list: %w", err)
		}
		return records, nil
	case http.StatusForbidden:
		return nil, fmt.Errorf("metadata list: %w", metadata.ErrForbidden)
	default:
		return nil, fmt.Errorf("metadata list failed: %s", readError(resp))
	}
}

func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.Status
	}
	return string(bytes.TrimSpace(data))
}
