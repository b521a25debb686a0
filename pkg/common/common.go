package common

import (
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	NA       = "N/A"
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IsEmptyOrNA reports whether s is blank or the N/A placeholder
func IsEmptyOrNA(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NA
}

func If(cond bool, a, b interface{}) interface{} {
	if cond {
		return a
	}
	return b
}

// ToJson returns the JSON encoding of v, or an empty string on failure
func ToJson(v interface{}) string {
	bs, err := json.MarshalToString(v)
	if err != nil {
		return ""
	}
	return bs
}

func FromJson(s string, v interface{}) error {
	return json.UnmarshalFromString(s, v)
}

// TitleName normalizes a person name: trimmed, single spaced, title cased.
func TitleName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	return cases.Title(language.Und).String(strings.ToLower(s))
}

// InSlice reports whether v is one of the values in list
func InSlice(v string, list []string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n characters without splitting a multibyte rune
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
