// Package models describes the ggml whisper models the app can use and picks
// the largest one a machine can run.
package models

import (
	"slices"

	"super-mouse-ai/internal/domain"
)

// DownloadBaseURL is where catalog files are fetched from.
const DownloadBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// TurboVersion tags the large-v3 turbo model.
const TurboVersion = "v3-turbo"

const (
	mb = 1_000_000
	gb = 1_000_000_000
)

// Approximate working memory per size class.
var workingSet = map[domain.SizeClass]int64{
	domain.SizeTiny:   273 * mb,
	domain.SizeBase:   388 * mb,
	domain.SizeSmall:  852 * mb,
	domain.SizeMedium: 2100 * mb,
	domain.SizeLarge:  3900 * mb,
}

type spec struct {
	size       domain.SizeClass
	version    string
	file       string
	checksum   string
	bytes      int64
	quant      domain.QuantizeType
	english    bool
	superseded bool
}

var catalog = build([]spec{
	{domain.SizeTiny, "", "ggml-tiny.bin", "sha1:bd577a113a864445d4c299885e0cb97d4ba92b5f", 77_691_713, domain.QuantizeFull, false, false},
	{domain.SizeTiny, "", "ggml-tiny.en.bin", "sha256:921e4cf8686fdd993dcd081a5da5b6c365bfde1162e72b08d75ac75289920b1f", 77_704_715, domain.QuantizeFull, true, false},
	{domain.SizeTiny, "", "ggml-tiny-q8_0.bin", "", 43_537_433, domain.QuantizeQ8, false, false},
	{domain.SizeTiny, "", "ggml-tiny.en-q8_0.bin", "sha256:5bc2b3860aa151a4c6e7bb095e1fcce7cf12c7b020ca08dcec0c6d018bb7dd94", 43_550_795, domain.QuantizeQ8, true, false},
	{domain.SizeTiny, "", "ggml-tiny-q5_1.bin", "", 32_152_673, domain.QuantizeQ5, false, false},
	{domain.SizeTiny, "", "ggml-tiny.en-q5_1.bin", "", 32_166_155, domain.QuantizeQ5, true, false},

	{domain.SizeBase, "", "ggml-base.bin", "sha1:465707469ff3a37a2b9b8d8f89f2f99de7299dac", 147_951_465, domain.QuantizeFull, false, false},
	{domain.SizeBase, "", "ggml-base.en.bin", "sha1:137c40403d78fd54d454da0f9bd998f78703390c", 147_964_211, domain.QuantizeFull, true, false},
	{domain.SizeBase, "", "ggml-base-q8_0.bin", "", 81_768_585, domain.QuantizeQ8, false, false},
	{domain.SizeBase, "", "ggml-base.en-q8_0.bin", "", 81_781_811, domain.QuantizeQ8, true, false},
	{domain.SizeBase, "", "ggml-base-q5_1.bin", "", 59_707_625, domain.QuantizeQ5, false, false},
	{domain.SizeBase, "", "ggml-base.en-q5_1.bin", "", 59_721_011, domain.QuantizeQ5, true, false},

	{domain.SizeSmall, "", "ggml-small.bin", "sha1:55356645c2b361a969dfd0ef2c5a50d530afd8d5", 487_601_967, domain.QuantizeFull, false, false},
	{domain.SizeSmall, "", "ggml-small.en.bin", "sha1:db8a495a91d927739e50b3fc1cc4c6b8f6c2d022", 487_614_201, domain.QuantizeFull, true, false},
	{domain.SizeSmall, "", "ggml-small-q8_0.bin", "", 264_464_607, domain.QuantizeQ8, false, false},
	{domain.SizeSmall, "", "ggml-small.en-q8_0.bin", "", 264_477_561, domain.QuantizeQ8, true, false},
	{domain.SizeSmall, "", "ggml-small-q5_1.bin", "", 190_085_487, domain.QuantizeQ5, false, false},
	{domain.SizeSmall, "", "ggml-small.en-q5_1.bin", "", 190_098_681, domain.QuantizeQ5, true, false},

	{domain.SizeMedium, "", "ggml-medium.bin", "sha1:fd9727b6e1217c2f614f9b698455c4ffd82463b4", 1_533_763_059, domain.QuantizeFull, false, false},
	{domain.SizeMedium, "", "ggml-medium.en.bin", "sha1:8c30f0e44ce9560643ebd10bbe50cd20eafd3723", 1_533_774_781, domain.QuantizeFull, true, false},
	{domain.SizeMedium, "", "ggml-medium-q8_0.bin", "", 823_369_779, domain.QuantizeQ8, false, false},
	{domain.SizeMedium, "", "ggml-medium.en-q8_0.bin", "", 823_382_461, domain.QuantizeQ8, true, false},
	{domain.SizeMedium, "", "ggml-medium-q5_0.bin", "", 539_212_467, domain.QuantizeQ5, false, false},
	{domain.SizeMedium, "", "ggml-medium.en-q5_0.bin", "", 539_225_533, domain.QuantizeQ5, true, false},

	{domain.SizeLarge, "v1", "ggml-large-v1.bin", "sha1:b1caaf735c4cc1429223d5a74f0f4d0b9b59a299", 3_094_623_691, domain.QuantizeFull, false, true},
	{domain.SizeLarge, "v2", "ggml-large-v2.bin", "sha1:0f4c8e34f21cf1a914c59d8b3ce882345ad349d6", 3_094_623_691, domain.QuantizeFull, false, true},
	{domain.SizeLarge, "v2", "ggml-large-v2-q8_0.bin", "", 1_656_129_691, domain.QuantizeQ8, false, true},
	{domain.SizeLarge, "v2", "ggml-large-v2-q5_0.bin", "", 1_080_732_091, domain.QuantizeQ5, false, true},
	{domain.SizeLarge, "v3", "ggml-large-v3.bin", "sha1:ad82bf6a9043ceed055076d0fd39f5f186ff8062", 3_095_033_483, domain.QuantizeFull, false, false},
	{domain.SizeLarge, "v3", "ggml-large-v3-q5_0.bin", "", 1_081_140_203, domain.QuantizeQ5, false, false},
	{domain.SizeLarge, TurboVersion, "ggml-large-v3-turbo.bin", "sha1:4af2b29d7ec73d781377bfd1758ca957a807e941", 1_624_555_275, domain.QuantizeFull, false, false},
	{domain.SizeLarge, TurboVersion, "ggml-large-v3-turbo-q8_0.bin", "", 874_188_075, domain.QuantizeQ8, false, false},
	{domain.SizeLarge, TurboVersion, "ggml-large-v3-turbo-q5_0.bin", "", 574_041_195, domain.QuantizeQ5, false, false},
})

func build(specs []spec) []domain.WhisperModelInfo {
	out := make([]domain.WhisperModelInfo, 0, len(specs))
	for _, s := range specs {
		mem := workingSet[s.size]
		if s.version == TurboVersion {
			mem = workingSet[domain.SizeMedium]
		}
		// Quantized weights shrink the resident footprint by the saved bytes.
		if full := fullSize(specs, s); full > s.bytes {
			mem -= full - s.bytes
		}
		out = append(out, domain.WhisperModelInfo{
			Size:         s.size,
			Version:      s.version,
			RelativePath: s.file,
			Checksum:     s.checksum,
			ApproxSize:   s.bytes,
			Quantize:     s.quant,
			EnglishOnly:  s.english,
			Superseded:   s.superseded,
			RecVRAM:      mem,
			RecRAM:       mem,
		})
	}
	return out
}

func fullSize(specs []spec, of spec) int64 {
	for _, s := range specs {
		if s.size == of.size && s.version == of.version && s.english == of.english && s.quant == domain.QuantizeFull {
			return s.bytes
		}
	}
	return 0
}

// Catalog returns a copy of the compiled-in model list.
func Catalog() []domain.WhisperModelInfo {
	return slices.Clone(catalog)
}

// ByFileName finds a catalog entry by its relative path.
func ByFileName(name string) (domain.WhisperModelInfo, bool) {
	i := slices.IndexFunc(catalog, func(m domain.WhisperModelInfo) bool { return m.RelativePath == name })
	if i < 0 {
		return domain.WhisperModelInfo{}, false
	}
	return catalog[i], true
}

// DownloadURL returns where a catalog file can be fetched.
func DownloadURL(model domain.WhisperModelInfo) string {
	return DownloadBaseURL + model.RelativePath
}
