package asset

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"assetizer/internal/services"
)

// idPattern matches a BV-style video identifier anywhere in the input.
var idPattern = regexp.MustCompile(`BV[a-zA-Z0-9]+`)

// ExtractID pulls the stable video identifier out of a watch URL, a short
// link, or a bare identifier. Accepted forms include:
//
//	https://www.bilibili.com/video/BV1vCzDBYEEa
//	https://www.bilibili.com/video/BV1vCzDBYEEa/?p=1
//	https://b23.tv/BV1vCzDBYEEa
//	BV1vCzDBYEEa
func ExtractID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", services.Wrap(services.ErrValidation, "", "extract id", "empty URL or identifier", nil)
	}
	if match := idPattern.FindString(input); match != "" {
		return match, nil
	}
	if parsed, err := url.Parse(input); err == nil && parsed.Host != "" {
		if !strings.Contains(strings.ToLower(parsed.Host), "bilibili") {
			return "", services.Wrap(services.ErrValidation, "", "extract id",
				fmt.Sprintf("not a recognized video URL: %s", input), nil)
		}
	}
	return "", services.Wrap(services.ErrValidation, "", "extract id",
		fmt.Sprintf("no video identifier found in %q", input), nil)
}

// CanonicalURL builds the normalized watch URL for an identifier.
func CanonicalURL(id string) string {
	return "https://www.bilibili.com/video/" + id
}

// ValidID reports whether s is a well-formed bare identifier.
func ValidID(s string) bool {
	return idPattern.FindString(s) == s
}
