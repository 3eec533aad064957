// Package credential implements the issuance service: it mints the asset key,
// produces a short-lived presigned write credential, and embeds the caller
// context the downstream optimizer needs.
//
// The context travels as S3 user metadata on the write itself (ContextV1).
// This is a deliberate coupling: the worker recovers identity, role, and
// options from the object head without a round trip back into this service,
// and because the headers are part of the presigned signature the client
// cannot rewrite ownership. The access layer's owner-scoping invariant rests
// on this contract.
package credential

import (
	"context"
	"fmt"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ananthjv/pixlift/internal/model"
)

// ContextV1 is the versioned side-channel contract at the object store write
// boundary. Keys appear on the wire prefixed with "x-amz-meta-".
const (
	MetaVersion      = "ctx-version"
	MetaOwner        = "owner"
	MetaRole         = "role"
	MetaQuality      = "quality"
	MetaKeepOriginal = "keep-original"
	MetaFileName     = "file-name"

	ContextVersion = "1"
)

// Grant is the issued write credential. Single use in effect: the asset key is
// never reissued, and any write after ExpiresAt is rejected by the store.
type Grant struct {
	AssetKey  string            `json:"assetKey"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Presigner produces signed upload URLs carrying user metadata.
// *objectstore.Storage satisfies it; tests substitute a fake.
type Presigner interface {
	PresignUpload(ctx context.Context, objectKey string, expiry time.Duration, userMeta map[string]string) (*url.URL, http.Header, error)
}

// Issuer mints upload credentials.
type Issuer struct {
	presigner Presigner
	ttl       time.Duration
}

// NewIssuer constructs an Issuer with the given credential horizon.
func NewIssuer(presigner Presigner, ttl time.Duration) *Issuer {
	return &Issuer{presigner: presigner, ttl: ttl}
}

// Issue creates a fresh asset key and a presigned credential bound to the
// request's context. No metadata record exists when this returns; the record
// is born later, once, when the optimizer finishes.
func (i *Issuer) Issue(ctx context.Context, req model.UploadRequest, fileName string) (*Grant, error) {
	assetKey := uuid.NewString()
	objectKey := assetKey + normalizeExt(fileName)
	meta := EncodeContext(req, fileName)
	u, headers, err := i.presigner.PresignUpload(ctx, objectKey, i.ttl, meta)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}
	flat := make(map[string]string, len(headers))
	for k := range headers {
		flat[k] = headers.Get(k)
	}
	return &Grant{
		AssetKey:  assetKey,
		URL:       u.String(),
		Headers:   flat,
		ExpiresAt: time.Now().UTC().Add(i.ttl),
	}, nil
}

// EncodeContext flattens an UploadRequest into the ContextV1 metadata map.
func EncodeContext(req model.UploadRequest, fileName string) map[string]string {
	return map[string]string{
		MetaVersion:      ContextVersion,
		MetaOwner:        req.Identity,
		MetaRole:         string(req.Role),
		MetaQuality:      strconv.Itoa(model.ClampQuality(req.Quality)),
		MetaKeepOriginal: strconv.FormatBool(req.KeepOriginal),
		MetaFileName:     fileName,
	}
}

// DecodeContext reconstructs the UploadRequest from object-head user metadata.
// Stores canonicalize metadata keys, so lookups are case-insensitive. Missing
// or unparseable fields degrade the way the optimizer always has: anonymous
// guest, quality 80, no original-resolution rendition.
func DecodeContext(userMeta map[string]string) (model.UploadRequest, string) {
	get := func(key string) string {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		for k, v := range userMeta {
			if textproto.CanonicalMIMEHeaderKey(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")) == canonical {
				return v
			}
		}
		return ""
	}
	owner := get(MetaOwner)
	if owner == "" {
		owner = "anonymous"
	}
	role := model.RoleGuest
	if r := get(MetaRole); r != "" {
		role = model.ParseRole(r)
	}
	keep, _ := strconv.ParseBool(get(MetaKeepOriginal))
	req := model.UploadRequest{
		Identity:     owner,
		Role:         role,
		Quality:      model.ParseQuality(get(MetaQuality)),
		KeepOriginal: keep,
	}
	return req, get(MetaFileName)
}

// AssetKeyFromObject strips the extension so an object key round-trips back to
// its asset key.
func AssetKeyFromObject(objectKey string) string {
	return strings.TrimSuffix(objectKey, filepath.Ext(objectKey))
}

func normalizeExt(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return ".png"
	case ".jpeg":
		return ".jpeg"
	default:
		return ".jpg"
	}
}
