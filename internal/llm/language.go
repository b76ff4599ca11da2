package llm

import "strings"

// LanguageName maps an ISO language code to the name used in prompts.
// Unknown codes are passed through unchanged.
func LanguageName(code string) string {
	switch strings.ToLower(code) {
	case "de":
		return "German"
	case "fr":
		return "French"
	case "es":
		return "Spanish"
	case "it":
		return "Italian"
	case "nl":
		return "Dutch"
	case "", "en":
		return "English"
	}
	return code
}
