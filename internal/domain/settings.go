package domain

// Theme selects the application colour scheme.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return true
	default:
		return false
	}
}

// Settings is a snapshot of every persisted configuration value.
type Settings struct {
	Theme              Theme    `json:"theme" yaml:"theme"`
	Shortcut           string   `json:"shortcut" yaml:"shortcut"`
	Threads            int      `json:"threads" yaml:"threads"`
	IgnoredWords       string   `json:"ignoredWords" yaml:"ignored_words"`
	InitialPrompt      string   `json:"initialPrompt" yaml:"initial_prompt"`
	Language           string   `json:"language" yaml:"language"`
	Translate          bool     `json:"translate" yaml:"translate"`
	EnableSound        bool     `json:"enableSound" yaml:"enable_sound"`
	EnableNotification bool     `json:"enableNotification" yaml:"enable_notification"`
	Model              string   `json:"model" yaml:"model"`
	DownloadedModels   []string `json:"downloadedModels" yaml:"downloaded_models"`
	UseGPU             bool     `json:"useGPU" yaml:"use_gpu"`
	Patience           float64  `json:"patience" yaml:"patience"`
	NormalizeAudio     bool     `json:"normalizeAudio" yaml:"normalize_audio"`
	DenoiseAudio       bool     `json:"denoiseAudio" yaml:"denoise_audio"`
	LowPass            int      `json:"lowPass" yaml:"low_pass"`
	HighPass           int      `json:"highPass" yaml:"high_pass"`
	WindowOnTop        bool     `json:"windowOnTop" yaml:"window_on_top"`
	CurrentIndex       int      `json:"index" yaml:"index"`
}

// DefaultSettings returns the value every setting takes before anything has
// been persisted.
//
// Threads 0 lets the engine pick a thread count. An empty Model means the
// application's bundled default model.
func DefaultSettings() Settings {
	return Settings{
		Theme:              ThemeSystem,
		Shortcut:           "Control+Alt+Space",
		Threads:            0,
		IgnoredWords:       "",
		InitialPrompt:      "",
		Language:           "auto",
		Translate:          false,
		EnableSound:        true,
		EnableNotification: true,
		Model:              "",
		DownloadedModels:   []string{},
		UseGPU:             true,
		Patience:           1.0,
		NormalizeAudio:     false,
		DenoiseAudio:       true,
		LowPass:            3000,
		HighPass:           200,
		WindowOnTop:        false,
		CurrentIndex:       0,
	}
}
