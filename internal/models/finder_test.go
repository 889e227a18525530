package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"super-mouse-ai/internal/domain"
)

func model(size domain.SizeClass, version string, quant domain.QuantizeType, bytes int64) domain.WhisperModelInfo {
	return domain.WhisperModelInfo{
		Size:         size,
		Version:      version,
		RelativePath: string(size) + version + string(quant),
		ApproxSize:   bytes,
		Quantize:     quant,
		EnglishOnly:  true,
	}
}

var workstation = domain.SystemInfo{CPUCoreCount: 16, TotalMemoryGB: 64, TotalVRAMGB: 24}

// TestSmallCPUMachineGetsTinyOrNothing checks the core gate on a 2-core machine.
func TestSmallCPUMachineGetsTinyOrNothing(t *testing.T) {
	opts := DefaultFinderOptions()
	opts.UsesCPU = true
	sys := domain.SystemInfo{CPUCoreCount: 2, TotalMemoryGB: 4, TotalVRAMGB: 0}

	got, ok := FindLargestUsableModel(sys, opts)
	if ok {
		require.Equal(t, domain.SizeTiny, got.Size)
	}

	sys.TotalVRAMGB = 8
	got, ok = FindLargestUsableModel(sys, DefaultFinderOptions())
	require.True(t, ok)
	require.Equal(t, domain.SizeTiny, got.Size)
}

// TestFullBeatsQ8AtEqualPriority checks quantization fidelity breaks ties.
func TestFullBeatsQ8AtEqualPriority(t *testing.T) {
	candidates := []domain.WhisperModelInfo{
		model(domain.SizeSmall, "", domain.QuantizeQ8, 264*mb),
		model(domain.SizeSmall, "", domain.QuantizeFull, 487*mb),
	}

	got, ok := FindIn(candidates, workstation, DefaultFinderOptions())
	require.True(t, ok)
	require.Equal(t, domain.QuantizeFull, got.Quantize)
}

// TestSmallerFileBreaksRemainingTies checks the final tie-break on size.
func TestSmallerFileBreaksRemainingTies(t *testing.T) {
	candidates := []domain.WhisperModelInfo{
		model(domain.SizeBase, "", domain.QuantizeFull, 150*mb),
		model(domain.SizeBase, "b", domain.QuantizeFull, 140*mb),
	}

	got, ok := FindIn(candidates, workstation, DefaultFinderOptions())
	require.True(t, ok)
	require.EqualValues(t, 140*mb, got.ApproxSize)
}

// TestTurboUsesItsOwnPriority checks the turbo rank is separate from large.
func TestTurboUsesItsOwnPriority(t *testing.T) {
	candidates := []domain.WhisperModelInfo{
		model(domain.SizeLarge, "v3", domain.QuantizeFull, 3*gb),
		model(domain.SizeLarge, TurboVersion, domain.QuantizeQ5, 574*mb),
		model(domain.SizeSmall, "", domain.QuantizeFull, 487*mb),
	}

	got, ok := FindIn(candidates, workstation, DefaultFinderOptions())
	require.True(t, ok)
	require.Equal(t, TurboVersion, got.Version)

	opts := DefaultFinderOptions()
	opts.SizePriority.LargeTurbo = 0
	got, ok = FindIn(candidates, workstation, opts)
	require.True(t, ok)
	require.Equal(t, domain.SizeSmall, got.Size)
}

// TestFilters checks superseded, language and compression exclusions.
func TestFilters(t *testing.T) {
	superseded := model(domain.SizeMedium, "", domain.QuantizeFull, 1*gb)
	superseded.Superseded = true
	_, ok := FindIn([]domain.WhisperModelInfo{superseded}, workstation, DefaultFinderOptions())
	require.False(t, ok)

	multilingual := model(domain.SizeMedium, "", domain.QuantizeFull, 1*gb)
	multilingual.EnglishOnly = false
	_, ok = FindIn([]domain.WhisperModelInfo{multilingual}, workstation, DefaultFinderOptions())
	require.False(t, ok)
	opts := DefaultFinderOptions()
	opts.PreferEnglishOnly = false
	_, ok = FindIn([]domain.WhisperModelInfo{multilingual}, workstation, opts)
	require.True(t, ok)

	q5 := model(domain.SizeSmall, "", domain.QuantizeQ5, 190*mb)
	q8 := model(domain.SizeSmall, "", domain.QuantizeQ8, 264*mb)
	opts = DefaultFinderOptions()
	opts.Compression = CompressionLow
	got, ok := FindIn([]domain.WhisperModelInfo{q5, q8}, workstation, opts)
	require.True(t, ok)
	require.Equal(t, domain.QuantizeQ8, got.Quantize)
	opts.Compression = CompressionNone
	_, ok = FindIn([]domain.WhisperModelInfo{q5, q8}, workstation, opts)
	require.False(t, ok)
}

// TestMemoryWindows checks VRAM always applies and RAM only for CPU execution.
func TestMemoryWindows(t *testing.T) {
	big := model(domain.SizeMedium, "", domain.QuantizeFull, 1_500*mb) // 2 GB rounded up
	sys := domain.SystemInfo{CPUCoreCount: 8, TotalMemoryGB: 16, TotalVRAMGB: 2}

	_, ok := FindIn([]domain.WhisperModelInfo{big}, sys, DefaultFinderOptions())
	require.False(t, ok, "2 GB exceeds 0.75 * 2 GB VRAM")

	sys.TotalVRAMGB = 4
	_, ok = FindIn([]domain.WhisperModelInfo{big}, sys, DefaultFinderOptions())
	require.True(t, ok)

	opts := DefaultFinderOptions()
	opts.UsesCPU = true
	_, ok = FindIn([]domain.WhisperModelInfo{big}, sys, opts)
	require.False(t, ok, "2 GB exceeds 0.05 * 16 GB RAM")

	sys.TotalMemoryGB = 64
	_, ok = FindIn([]domain.WhisperModelInfo{big}, sys, opts)
	require.True(t, ok)
}

// TestCatalogRecommendation checks the built-in catalog on a capable machine.
func TestCatalogRecommendation(t *testing.T) {
	got, ok := FindLargestUsableModel(workstation, DefaultFinderOptions())
	require.True(t, ok)
	require.Equal(t, domain.SizeSmall, got.Size)
	require.Equal(t, domain.QuantizeFull, got.Quantize)
	require.True(t, got.EnglishOnly)

	opts := DefaultFinderOptions()
	opts.PreferEnglishOnly = false
	got, ok = FindLargestUsableModel(workstation, opts)
	require.True(t, ok)
	require.Equal(t, "ggml-large-v3-turbo.bin", got.RelativePath)
}

// TestCatalogIsACopy checks callers cannot mutate the built-in list.
func TestCatalogIsACopy(t *testing.T) {
	c := Catalog()
	c[0].RelativePath = "changed"
	require.NotEqual(t, "changed", Catalog()[0].RelativePath)

	m, ok := ByFileName("ggml-tiny.en-q8_0.bin")
	require.True(t, ok)
	require.Equal(t, domain.QuantizeQ8, m.Quantize)
	require.Equal(t, DownloadBaseURL+"ggml-tiny.en-q8_0.bin", DownloadURL(m))
	_, ok = ByFileName("ggml-huge.bin")
	require.False(t, ok)
}

// TestName checks display names.
func TestName(t *testing.T) {
	turbo, _ := ByFileName("ggml-large-v3-turbo-q8_0.bin")
	require.Equal(t, "Large V3 Turbo Low Compression", Name(turbo))

	tiny, _ := ByFileName("ggml-tiny.en-q5_1.bin")
	require.Equal(t, "Tiny High Compression (English Only)", Name(tiny))

	require.Equal(t, "Unknown Model", Name(domain.WhisperModelInfo{}))
}

// TestHumanSize checks SI formatting.
func TestHumanSize(t *testing.T) {
	require.Equal(t, "0 B", HumanSize(0))
	require.Equal(t, "999.00 B", HumanSize(999))
	require.Equal(t, "43.55 MB", HumanSize(43_550_795))
	require.Equal(t, "1.62 GB", HumanSize(1_624_555_275))
}
