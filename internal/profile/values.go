package profile

import "strings"

// Section names.
const (
	SectionMain = "MAIN"
	SectionStat = "STAT"
)

// MAIN keys.
const (
	KeyLang    = "lang"
	KeyForward = "forward"
	KeyDebug   = "debug"
	KeyPublic  = "public"
)

// STAT keys.
const (
	KeyVersion = "version"
	KeyTotal   = "total"
)

// DefaultLanguage is used whenever a profile has no usable lang.
const DefaultLanguage = "en"

type language struct {
	code string
	name string
}

// languages is the fixed target set, in keyboard order.
var languages = []language{
	{"de", "German"},
	{"fr", "French"},
	{"es", "Spanish"},
	{"it", "Italian"},
	{"nl", "Dutch"},
	{"pl", "Polish"},
	{"ja", "Japanese"},
	{"zh", "Chinese"},
	{"pt", "Portuguese"},
	{"ru", "Russian"},
	{"en", "English"},
}

// Languages returns the supported language codes in display order.
func Languages() []string {
	out := make([]string, len(languages))
	for i, l := range languages {
		out[i] = l.code
	}
	return out
}

// IsLanguage reports whether code is a supported target language.
func IsLanguage(code string) bool {
	for _, l := range languages {
		if l.code == code {
			return true
		}
	}
	return false
}

// LanguageName returns the display name for code, or code itself if unknown.
func LanguageName(code string) string {
	for _, l := range languages {
		if l.code == code {
			return l.name
		}
	}
	return code
}

// IsOwnerOnlyKey reports whether key may only be stored on the owner's profile.
func IsOwnerOnlyKey(key string) bool {
	switch strings.ToLower(key) {
	case KeyForward, KeyDebug, KeyPublic:
		return true
	}
	return false
}

// ParseBool reads the stored boolean tokens. true, yes, on and 1 are true in
// any case; everything else is false.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// FormatBool renders a boolean the way profiles store it.
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
