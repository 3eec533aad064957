// Package model contains the types shared between the issuance service, the
// optimizer worker, and the metadata access layer.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Role is the access tier attached to a session. It gates whether metadata
// reads are scoped to one owner or span all owners.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole maps a role claim to a known Role. Unknown claims resolve to
// RoleUser so a mangled claim can never grant admin access.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleGuest:
		return RoleGuest
	default:
		return RoleUser
	}
}

// DefaultQuality is used whenever a caller omits the quality knob or supplies
// something unparseable.
const DefaultQuality = 80

// ClampQuality coerces quality into [1,100]. Out-of-range values are clamped
// rather than rejected; callers that need an exact quality must validate
// before issuing.
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// ParseQuality converts a textual quality knob. Empty or non-numeric input
// falls back to DefaultQuality, numeric input is clamped.
func ParseQuality(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultQuality
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DefaultQuality
	}
	return ClampQuality(n)
}

// UploadRequest captures the caller context fixed at issuance time. It is
// immutable after construction; the same values travel to the worker through
// the credential's side channel.
type UploadRequest struct {
	Identity     string `json:"identity"`
	Role         Role   `json:"role"`
	Quality      int    `json:"quality"`
	KeepOriginal bool   `json:"keepOriginal"`
}

// NewUploadRequest normalizes caller input into an UploadRequest.
func NewUploadRequest(identity string, role Role, quality int, keepOriginal bool) UploadRequest {
	if quality == 0 {
		quality = DefaultQuality
	}
	return UploadRequest{
		Identity:     identity,
		Role:         role,
		Quality:      ClampQuality(quality),
		KeepOriginal: keepOriginal,
	}
}

// MetadataRecord is written exactly once per asset key by the optimizer worker
// and never updated or deleted. Owner must equal the identity embedded at
// issuance; the access layer relies on that binding for per-owner scoping.
type MetadataRecord struct {
	AssetKey         string             `json:"assetKey"`
	Owner            string             `json:"ownerIdentity"`
	OwnerRole        Role               `json:"ownerRole"`
	FileName         string             `json:"fileName"`
	OriginalSizeKB   float64            `json:"originalSizeKB"`
	OutputVariantsKB map[string]float64 `json:"outputVariantsKB"`
	// SavingsPercent doubles as the completion signal: an empty string means
	// the record is not finished, any non-empty value (including "0%") means
	// processing is done.
	SavingsPercent   string    `json:"savingsPercent"`
	ProcessingTimeMs float64   `json:"processingTimeMs"`
	QualityUsed      int       `json:"qualityUsed"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Qualifies reports whether the record satisfies the poller's wait condition.
// A present-but-unpopulated record does not qualify.
func (r *MetadataRecord) Qualifies() bool {
	return r != nil && strings.TrimSpace(r.SavingsPercent) != ""
}

// TotalOutputKB sums the variant sizes.
func (r *MetadataRecord) TotalOutputKB() float64 {
	var total float64
	for _, kb := range r.OutputVariantsKB {
		total += kb
	}
	return total
}

// ParseSavings parses a savings value as written by the worker: a bare number
// with an optional "%" suffix, e.g. "37.25%" or "0".
func ParseSavings(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	return strconv.ParseFloat(s, 64)
}

// FormatSavings renders a savings ratio the way the worker stores it.
func FormatSavings(percent float64) string {
	return strconv.FormatFloat(percent, 'f', 2, 64) + "%"
}
