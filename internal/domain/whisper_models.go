package domain

// SizeClass is the parameter-count family of a whisper model.
type SizeClass string

const (
	SizeTiny   SizeClass = "tiny"
	SizeBase   SizeClass = "base"
	SizeSmall  SizeClass = "small"
	SizeMedium SizeClass = "medium"
	SizeLarge  SizeClass = "large"
)

// QuantizeType is the compression tier of a ggml model file.
type QuantizeType string

const (
	QuantizeFull QuantizeType = "full"
	QuantizeQ8   QuantizeType = "q8"
	QuantizeQ5   QuantizeType = "q5"
)

// Fidelity ranks quantization tiers, higher is closer to the full model.
func (q QuantizeType) Fidelity() int {
	switch q {
	case QuantizeFull:
		return 2
	case QuantizeQ8:
		return 1
	default:
		return 0
	}
}

// WhisperModelInfo describes one downloadable ggml whisper model.
type WhisperModelInfo struct {
	Size         SizeClass    `json:"modelSize"`
	Version      string       `json:"version,omitempty"`
	RelativePath string       `json:"relativePath"`
	Checksum     string       `json:"checksum,omitempty"`
	ApproxSize   int64        `json:"approxSize"`
	Quantize     QuantizeType `json:"quantizeType"`
	EnglishOnly  bool         `json:"isEnglishOnly"`
	Superseded   bool         `json:"isSuperceded"`
	RecVRAM      int64        `json:"recommendedVRAM"`
	RecRAM       int64        `json:"recommendedRAM"`
}

// SystemInfo is the machine resources the model advisor sizes against.
type SystemInfo struct {
	CPUCoreCount  float64 `json:"cpu_core_count"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
	TotalVRAMGB   float64 `json:"total_vram_gb"`
}
