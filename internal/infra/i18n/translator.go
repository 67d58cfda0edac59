package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// BaseLanguage is always loaded first; other languages override its keys.
const BaseLanguage = "en"

// Translator looks up user-facing texts by key.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<lang>.yaml from fsys on top of the base
// language, so a partial translation still yields complete texts.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	merged, err := load(fsys, BaseLanguage)
	if err != nil {
		return nil, err
	}
	if langCode != "" && langCode != BaseLanguage {
		over, err := load(fsys, langCode)
		if err != nil {
			return nil, err
		}
		for k, v := range over {
			merged[k] = v
		}
	}
	return &Translator{lang: langCode, translations: merged}, nil
}

// Default returns the embedded base-language catalog.
func Default() *Translator {
	t, err := NewTranslator(LocalesFS, BaseLanguage)
	if err != nil {
		panic(err)
	}
	return t
}

func load(fsys fs.FS, langCode string) (map[string]string, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("read translation file %s: %w", filePath, err)
	}
	return parse(data)
}

func parse(data []byte) (map[string]string, error) {
	translations := map[string]string{}
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("parse translation file: %w", err)
	}
	return translations, nil
}

// T formats the text for key with args. Unknown keys come back unchanged.
func (t *Translator) T(key string, args ...any) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

func (t *Translator) Language() string { return t.lang }
