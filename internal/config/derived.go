package config

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Modifier is a keyboard modifier in a shortcut.
type Modifier string

const (
	ModAlt     Modifier = "Alt"
	ModControl Modifier = "Control"
	ModMeta    Modifier = "Meta"
	ModShift   Modifier = "Shift"
)

var modifierAliases = map[string]Modifier{
	"ctrl":    ModControl,
	"control": ModControl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"cmd":     ModMeta,
	"command": ModMeta,
	"super":   ModMeta,
	"meta":    ModMeta,
	"win":     ModMeta,
	"shift":   ModShift,
}

// IgnoredWordList splits the ignore list on commas and newlines.
func (r *Registry) IgnoredWordList() []string {
	return SplitIgnoredWords(r.IgnoredWords.Get())
}

// SplitIgnoredWords tokenises an ignore list, dropping blanks and
// case-insensitive repeats while keeping first-seen order.
func SplitIgnoredWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	words := lo.FilterMap(fields, func(f string, _ int) (string, bool) {
		f = strings.TrimSpace(f)
		return f, f != ""
	})
	return lo.UniqBy(words, strings.ToLower)
}

// ShortcutModifiers returns the modifiers named in the shortcut.
func (r *Registry) ShortcutModifiers() []Modifier {
	return ParseModifiers(r.Shortcut.Get())
}

// ParseModifiers extracts sorted, unique modifiers from a "+"-joined shortcut.
// Non-modifier keys are ignored.
func ParseModifiers(shortcut string) []Modifier {
	mods := lo.FilterMap(strings.Split(shortcut, "+"), func(tok string, _ int) (Modifier, bool) {
		m, ok := modifierAliases[strings.ToLower(strings.TrimSpace(tok))]
		return m, ok
	})
	mods = lo.Uniq(mods)
	slices.Sort(mods)
	return mods
}
