package optimize

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTranscodeStandardVariants(t *testing.T) {
	out, err := Transcode(encodePNG(t, 2000, 1000), 80, false)
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("renditions = %d, want 3", len(out))
	}
	for _, v := range StandardVariants {
		encoded, ok := out[v.Name]
		if !ok {
			t.Fatalf("missing rendition %s", v.Name)
		}
		img, _, err := image.Decode(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("decode %s: %v", v.Name, err)
		}
		b := img.Bounds()
		if b.Dx() > v.MaxDim || b.Dy() > v.MaxDim {
			t.Fatalf("%s is %dx%d, exceeds %d", v.Name, b.Dx(), b.Dy(), v.MaxDim)
		}
	}
}

func TestTranscodeKeepOriginalPreservesDimensions(t *testing.T) {
	out, err := Transcode(encodePNG(t, 2000, 1000), 80, true)
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	encoded, ok := out[OriginalVariant]
	if !ok {
		t.Fatalf("missing %s rendition", OriginalVariant)
	}
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 2000 || img.Bounds().Dy() != 1000 {
		t.Fatalf("original_res was resized to %v", img.Bounds())
	}
}

func TestTranscodeAcceptsJPEGSource(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 200)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if _, err := Transcode(buf.Bytes(), 50, false); err != nil {
		t.Fatalf("transcode jpeg: %v", err)
	}
}

func TestTranscodeRejectsGarbage(t *testing.T) {
	if _, err := Transcode([]byte("definitely not an image"), 80, false); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSmallImageNotUpscaled(t *testing.T) {
	out, err := Transcode(encodePNG(t, 100, 80), 80, false)
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out["large"]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 80 {
		t.Fatalf("small source was upscaled to %v", img.Bounds())
	}
}

func TestSavingsPercent(t *testing.T) {
	if got := SavingsPercent(1000, 250); got != 75 {
		t.Fatalf("SavingsPercent = %v, want 75", got)
	}
	if got := SavingsPercent(1000, 1000); got != 0 {
		t.Fatalf("SavingsPercent = %v, want 0", got)
	}
	// Output larger than input yields a negative value, not a clamp to zero.
	if got := SavingsPercent(1000, 1500); got != -50 {
		t.Fatalf("SavingsPercent = %v, want -50", got)
	}
	if got := SavingsPercent(0, 100); got != 0 {
		t.Fatalf("SavingsPercent with empty input = %v, want 0", got)
	}
}

func TestKB(t *testing.T) {
	if got := KB(2048); got != 2 {
		t.Fatalf("KB(2048) = %v", got)
	}
	if got := KB(1536); got != 1.5 {
		t.Fatalf("KB(1536) = %v", got)
	}
}
