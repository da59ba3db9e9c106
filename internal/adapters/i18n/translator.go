// Package i18n renders user-facing messages in the caller's language.
package i18n

import (
	"context"
	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/okian/turnout/pkg/logger"
)

//go:embed active.*.toml
var localeFS embed.FS

// Message ids that are not domain error codes.
const (
	MsgInternalError = "internal_error"
	MsgSubmitted     = "submitted"
)

var supported = []language.Tag{language.Korean, language.English}

// Translator wraps a go-i18n bundle.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	tags            []language.Tag
	matcher         language.Matcher
	log             logger.Logger
}

// NewTranslator builds a Translator with the embedded catalogs. An unknown
// defaultLocale falls back to Korean.
func NewTranslator(defaultLocale string) *Translator {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.Korean
	}
	log := logger.Get().Named("i18n")

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	for _, file := range []string{"active.ko.toml", "active.en.toml"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			log.Error(context.Background(), "failed to load catalog", logger.String("file", file), logger.Error(err))
		}
	}

	// The default goes first so the matcher prefers it on ties.
	tags := []language.Tag{tag}
	for _, t := range supported {
		if t != tag {
			tags = append(tags, t)
		}
	}

	return &Translator{
		bundle:          bundle,
		defaultLanguage: tag,
		tags:            tags,
		matcher:         language.NewMatcher(tags),
		log:             log,
	}
}

// Default returns the fallback language.
func (t *Translator) Default() language.Tag {
	return t.defaultLanguage
}

// Match picks the best supported language for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return t.defaultLanguage
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return t.defaultLanguage
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return t.defaultLanguage
	}
	return t.tags[idx]
}

// T renders key for locale. Missing keys fall back to the default locale and
// finally to the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	msg, err := i18n.NewLocalizer(t.bundle, languages...).Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		t.log.Debug(context.Background(), "localize failed", logger.String("key", key), logger.Any("locales", languages), logger.Error(err))
		return key
	}
	return msg
}
