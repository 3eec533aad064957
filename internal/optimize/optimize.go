// Package optimize turns an uploaded jpeg/png into the responsive renditions
// the metadata record describes. The encoder stack is a stand-in for the real
// optimizer (fidelity of the transcode is out of scope); sizes, naming, and
// the savings arithmetic are the contract that matters.
package optimize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
)

// Variant names one output rendition and its bounding box.
type Variant struct {
	Name   string
	MaxDim int
}

// StandardVariants are produced for every upload.
var StandardVariants = []Variant{
	{Name: "thumbnails", MaxDim: 150},
	{Name: "medium", MaxDim: 800},
	{Name: "large", MaxDim: 1920},
}

// OriginalVariant is the optional 1:1 resolution rendition.
const OriginalVariant = "original_res"

// ContentType of every rendition.
const ContentType = "image/jpeg"

// Transcode decodes the source and returns rendition name -> encoded bytes.
// Quality is assumed pre-clamped to [1,100] by the issuance layer.
func Transcode(data []byte, quality int, keepOriginal bool) (map[string][]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	out := make(map[string][]byte, len(StandardVariants)+1)
	for _, v := range StandardVariants {
		encoded, err := encode(scale(src, v.MaxDim), quality)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", v.Name, err)
		}
		out[v.Name] = encoded
	}
	if keepOriginal {
		encoded, err := encode(src, quality)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", OriginalVariant, err)
		}
		out[OriginalVariant] = encoded
	}
	return out, nil
}

// SavingsPercent computes the size reduction ratio the record stores.
func SavingsPercent(originalBytes, outputBytes int) float64 {
	if originalBytes <= 0 {
		return 0
	}
	ratio := float64(originalBytes-outputBytes) / float64(originalBytes) * 100
	return math.Round(ratio*100) / 100
}

// KB converts a byte count to kilobytes rounded to two decimals, matching the
// units the read side parses.
func KB(bytes int) float64 {
	return math.Round(float64(bytes)/1024*100) / 100
}

// scale fits the image inside a maxDim square without upscaling, using
// nearest-neighbor sampling. Good enough for a stand-in transcoder.
func scale(src image.Image, maxDim int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}
	factor := float64(maxDim) / float64(w)
	if h > w {
		factor = float64(maxDim) / float64(h)
	}
	nw := int(math.Max(1, math.Floor(float64(w)*factor)))
	nh := int(math.Max(1, math.Floor(float64(h)*factor)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := bounds.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			sx := bounds.Min.X + x*w/nw
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
