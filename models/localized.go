package models

import "strings"

const (
	LangEN   = "en"
	LangZhTW = "zh-TW"
)

// LocalizedText is a bi-lingual string stored as one JSON column.
type LocalizedText struct {
	EN   string `json:"en"`
	ZhTW string `json:"zh-TW"`
}

// Get returns the text for lang, falling back to English.
func (t LocalizedText) Get(lang string) string {
	if strings.EqualFold(lang, LangZhTW) && t.ZhTW != "" {
		return t.ZhTW
	}
	return t.EN
}

// Complete reports whether both language variants are populated.
func (t LocalizedText) Complete() bool {
	return strings.TrimSpace(t.EN) != "" && strings.TrimSpace(t.ZhTW) != ""
}

func (t LocalizedText) Trimmed() LocalizedText {
	return LocalizedText{EN: strings.TrimSpace(t.EN), ZhTW: strings.TrimSpace(t.ZhTW)}
}
