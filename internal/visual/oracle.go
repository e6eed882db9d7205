package visual

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
)

// Oracle compares screenshots against stored PNG baselines. A missing
// baseline is written from the capture and reported as Created, so the first
// run of a new check seeds its own reference image.
type Oracle struct {
	// Dir holds the baseline images.
	Dir string
	// Tolerance is the fraction of pixels allowed to differ (0 means exact).
	Tolerance float64
	// Update rewrites baselines from the current captures instead of
	// comparing, the usual golden-file refresh switch.
	Update bool
}

// Result describes one comparison.
type Result struct {
	// Created is true when no baseline existed and got was saved as one.
	Created bool
	// DiffRatio is the fraction of pixels that differ.
	DiffRatio float64
	// Match is true when DiffRatio is within tolerance.
	Match bool
}

// Check compares got against the named baseline.
func (o *Oracle) Check(name string, got []byte) (Result, error) {
	path := filepath.Join(o.Dir, name+".png")

	if o.Update {
		if err := o.write(path, got); err != nil {
			return Result{}, err
		}
		return Result{Created: true, Match: true}, nil
	}

	want, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Result{}, fmt.Errorf("read baseline %s: %w", name, err)
		}
		if err := o.write(path, got); err != nil {
			return Result{}, err
		}
		return Result{Created: true, Match: true}, nil
	}

	ratio, err := diffRatio(want, got)
	if err != nil {
		return Result{}, fmt.Errorf("compare %s: %w", name, err)
	}
	return Result{DiffRatio: ratio, Match: ratio <= o.Tolerance}, nil
}

func (o *Oracle) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// diffRatio decodes both PNGs and returns the fraction of differing pixels.
// Size mismatch counts as a full diff.
func diffRatio(want, got []byte) (float64, error) {
	wantImg, err := png.Decode(bytes.NewReader(want))
	if err != nil {
		return 0, fmt.Errorf("decode baseline: %w", err)
	}
	gotImg, err := png.Decode(bytes.NewReader(got))
	if err != nil {
		return 0, fmt.Errorf("decode capture: %w", err)
	}

	wb, gb := wantImg.Bounds(), gotImg.Bounds()
	if wb.Dx() != gb.Dx() || wb.Dy() != gb.Dy() {
		return 1, nil
	}

	// Small per-channel slack absorbs anti-aliasing jitter between renders.
	const channelSlack = 8 << 8 // 16-bit color space

	var differing int
	for y := 0; y < wb.Dy(); y++ {
		for x := 0; x < wb.Dx(); x++ {
			if !pixelsClose(wantImg.At(wb.Min.X+x, wb.Min.Y+y), gotImg.At(gb.Min.X+x, gb.Min.Y+y), channelSlack) {
				differing++
			}
		}
	}
	total := wb.Dx() * wb.Dy()
	if total == 0 {
		return 0, nil
	}
	return float64(differing) / float64(total), nil
}

func pixelsClose(a, b interface{ RGBA() (r, g, b, a uint32) }, slack uint32) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return chClose(ar, br, slack) && chClose(ag, bg, slack) &&
		chClose(ab, bb, slack) && chClose(aa, ba, slack)
}

func chClose(a, b, slack uint32) bool {
	if a > b {
		return a-b <= slack
	}
	return b-a <= slack
}
