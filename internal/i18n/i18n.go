// internal/i18n/i18n.go
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var instance *I18n
var once sync.Once

func Initialize() error {
	var err error
	once.Do(func() {
		instance = &I18n{
			translations: make(map[string]map[string]string),
			defaultLang:  "en",
		}
		err = instance.LoadTranslations(localeFS, "locales")
	})
	return err
}

func (i *I18n) LoadTranslations(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to list locales: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", entry.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", entry.Name(), err)
		}

		i.mu.Lock()
		i.translations[lang] = translations
		i.mu.Unlock()
	}

	return nil
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, l := range []string{lang, i.defaultLang} {
		if translations, exists := i.translations[l]; exists {
			if text, exists := translations[key]; exists {
				if len(args) > 0 {
					return fmt.Sprintf(text, args...)
				}
				return text
			}
		}
	}

	// Return key if no translation found
	return key
}

// Global functions
func T(lang, key string, args ...interface{}) string {
	if instance != nil {
		return instance.T(lang, key, args...)
	}
	return key
}

var languageAliases = map[string]string{
	"zh_hant": "zh_TW",
	"zh_hk":   "zh_TW",
}

// Languages lists the loaded locales in sorted order.
func (i *I18n) Languages() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	langs := make([]string, 0, len(i.translations))
	for lang := range i.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Match maps a language tag such as "zh-TW", "zh-Hant" or "en-GB" to a
// loaded locale. It returns "" when nothing matches.
func (i *I18n) Match(tag string) string {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "-", "_")
	if tag == "" {
		return ""
	}
	if alias, ok := languageAliases[strings.ToLower(tag)]; ok {
		tag = alias
	}

	langs := i.Languages()
	for _, lang := range langs {
		if strings.EqualFold(lang, tag) {
			return lang
		}
	}

	base := strings.ToLower(strings.SplitN(tag, "_", 2)[0])
	for _, lang := range langs {
		if strings.ToLower(strings.SplitN(lang, "_", 2)[0]) == base {
			return lang
		}
	}
	return ""
}

func DefaultLanguage() string {
	if instance != nil {
		return instance.defaultLang
	}
	return "en"
}

func SupportedLanguages() []string {
	if instance != nil {
		return instance.Languages()
	}
	return []string{DefaultLanguage()}
}

func Match(tag string) string {
	if instance != nil {
		return instance.Match(tag)
	}
	if strings.HasPrefix(strings.ToLower(tag), DefaultLanguage()) {
		return DefaultLanguage()
	}
	return ""
}
