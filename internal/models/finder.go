package models

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"super-mouse-ai/internal/domain"
)

// Compression is the set of quantization tiers a caller accepts.
type Compression string

const (
	CompressionAll  Compression = "all"  // full, q8 and q5
	CompressionLow  Compression = "low"  // full and q8
	CompressionNone Compression = "none" // full only
)

// Allows reports whether q is acceptable under c.
func (c Compression) Allows(q domain.QuantizeType) bool {
	return c == CompressionAll || q == domain.QuantizeFull || (c == CompressionLow && q != domain.QuantizeQ5)
}

// SizePriority ranks size classes; the turbo model has its own rank.
type SizePriority struct {
	LargeTurbo int
	Large      int
	Medium     int
	Small      int
	Base       int
	Tiny       int
}

func (p SizePriority) of(m domain.WhisperModelInfo) int {
	if m.Version == TurboVersion {
		return p.LargeTurbo
	}
	switch m.Size {
	case domain.SizeLarge:
		return p.Large
	case domain.SizeMedium:
		return p.Medium
	case domain.SizeSmall:
		return p.Small
	case domain.SizeBase:
		return p.Base
	default:
		return p.Tiny
	}
}

// FinderOptions tune FindLargestUsableModel.
type FinderOptions struct {
	PreferEnglishOnly bool
	UsesCPU           bool
	Compression       Compression
	MinRAMRatio       float64
	MaxRAMRatio       float64
	MinVRAMRatio      float64
	MaxVRAMRatio      float64
	SizePriority      SizePriority
}

// DefaultFinderOptions prefers English-only models on the GPU and allows
// every compression tier.
func DefaultFinderOptions() FinderOptions {
	return FinderOptions{
		PreferEnglishOnly: true,
		UsesCPU:           false,
		Compression:       CompressionAll,
		MinRAMRatio:       0.01,
		MaxRAMRatio:       0.05,
		MinVRAMRatio:      0,
		MaxVRAMRatio:      0.75,
		SizePriority: SizePriority{
			LargeTurbo: 5,
			Small:      4,
			Large:      3,
			Base:       2,
			Medium:     1,
			Tiny:       0,
		},
	}
}

// minCoresAboveTiny is the core count required for anything larger than tiny.
const minCoresAboveTiny = 4

// FindLargestUsableModel picks from the built-in catalog. The bool is false
// when nothing fits; callers then use the application default model.
func FindLargestUsableModel(sys domain.SystemInfo, opts FinderOptions) (domain.WhisperModelInfo, bool) {
	return FindIn(catalog, sys, opts)
}

// FindIn picks the best usable model from candidates. Ties on size priority
// go to the higher quantization fidelity, then to the smaller file.
func FindIn(candidates []domain.WhisperModelInfo, sys domain.SystemInfo, opts FinderOptions) (domain.WhisperModelInfo, bool) {
	usable := lo.Filter(candidates, func(m domain.WhisperModelInfo, _ int) bool {
		return fits(m, sys, opts)
	})
	if len(usable) == 0 {
		return domain.WhisperModelInfo{}, false
	}

	return slices.MinFunc(usable, func(a, b domain.WhisperModelInfo) int {
		if d := opts.SizePriority.of(b) - opts.SizePriority.of(a); d != 0 {
			return d
		}
		if d := b.Quantize.Fidelity() - a.Quantize.Fidelity(); d != 0 {
			return d
		}
		switch {
		case a.ApproxSize < b.ApproxSize:
			return -1
		case a.ApproxSize > b.ApproxSize:
			return 1
		}
		return 0
	}), true
}

func fits(m domain.WhisperModelInfo, sys domain.SystemInfo, opts FinderOptions) bool {
	sizeGB := math.Ceil(float64(m.ApproxSize) / gb)

	if m.Superseded {
		return false
	}
	if !m.EnglishOnly && opts.PreferEnglishOnly {
		return false
	}
	if !opts.Compression.Allows(m.Quantize) {
		return false
	}
	if sizeGB < sys.TotalVRAMGB*opts.MinVRAMRatio || sizeGB > sys.TotalVRAMGB*opts.MaxVRAMRatio {
		return false
	}
	if opts.UsesCPU && (sizeGB < sys.TotalMemoryGB*opts.MinRAMRatio || sizeGB > sys.TotalMemoryGB*opts.MaxRAMRatio) {
		return false
	}
	return m.Size == domain.SizeTiny || sys.CPUCoreCount >= minCoresAboveTiny
}

// Name formats a model for display, e.g. "Large V3 Turbo Low Compression".
func Name(m domain.WhisperModelInfo) string {
	if m.Size == "" {
		return "Unknown Model"
	}
	var b strings.Builder
	b.WriteString(titleWords(string(m.Size)))
	if m.Version != "" {
		b.WriteString(" ")
		b.WriteString(titleWords(m.Version))
	}
	switch m.Quantize {
	case domain.QuantizeQ8:
		b.WriteString(" Low Compression")
	case domain.QuantizeQ5:
		b.WriteString(" High Compression")
	}
	if m.EnglishOnly {
		b.WriteString(" (English Only)")
	}
	return b.String()
}

func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '_' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// HumanSize formats bytes with SI prefixes and two decimals.
func HumanSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	exp := min(int(math.Floor(math.Log10(float64(bytes))/3)), len(units)-1)
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1000, float64(exp)), units[exp])
}
