package model

import (
	"testing"
	"time"
)

func TestClampQuality(t *testing.T) {
	cases := []struct{ in, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {80, 80}, {100, 100}, {250, 100},
	}
	for _, c := range cases {
		if got := ClampQuality(c.in); got != c.want {
			t.Fatalf("ClampQuality(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseQuality(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", DefaultQuality},
		{"abc", DefaultQuality},
		{"12.5", DefaultQuality},
		{"90", 90},
		{" 90 ", 90},
		{"900", 100},
		{"-1", 1},
	}
	for _, c := range cases {
		if got := ParseQuality(c.in); got != c.want {
			t.Fatalf("ParseQuality(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole("ADMIN") != RoleAdmin {
		t.Fatalf("expected admin")
	}
	if ParseRole("guest") != RoleGuest {
		t.Fatalf("expected guest")
	}
	// Unknown claims never resolve to a privileged role.
	if ParseRole("root") != RoleUser {
		t.Fatalf("expected user fallback")
	}
}

func TestParseSavings(t *testing.T) {
	for _, c := range []struct {
		in   string
		want float64
	}{
		{"37.25%", 37.25},
		{"37.25", 37.25},
		{"0", 0},
		{"0%", 0},
		{" 12.5% ", 12.5},
	} {
		got, err := ParseSavings(c.in)
		if err != nil {
			t.Fatalf("ParseSavings(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseSavings(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseSavings("not-a-number"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestQualifiesDistinguishesZeroFromEmpty(t *testing.T) {
	// A zero savings value means processing finished with no size win; only
	// the empty string means "not processed yet".
	empty := &MetadataRecord{AssetKey: "k"}
	if empty.Qualifies() {
		t.Fatalf("empty savings must not qualify")
	}
	zero := &MetadataRecord{AssetKey: "k", SavingsPercent: "0%"}
	if !zero.Qualifies() {
		t.Fatalf("zero savings must qualify")
	}
	var nilRec *MetadataRecord
	if nilRec.Qualifies() {
		t.Fatalf("nil record must not qualify")
	}
}

func TestTotalOutputKB(t *testing.T) {
	rec := &MetadataRecord{
		OutputVariantsKB: map[string]float64{"thumbnails": 1.5, "medium": 10, "large": 20.25},
		CreatedAt:        time.Now(),
	}
	if got := rec.TotalOutputKB(); got != 31.75 {
		t.Fatalf("TotalOutputKB = %v, want 31.75", got)
	}
}

func TestNewUploadRequestDefaults(t *testing.T) {
	req := NewUploadRequest("alice", RoleUser, 0, false)
	if req.Quality != DefaultQuality {
		t.Fatalf("quality = %d, want default %d", req.Quality, DefaultQuality)
	}
	req = NewUploadRequest("alice", RoleUser, 300, true)
	if req.Quality != 100 || !req.KeepOriginal {
		t.Fatalf("unexpected request %+v", req)
	}
}
