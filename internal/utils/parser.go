package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/datatypes"
)

// input is html text with variables in the form of {{variable}}
// output is a map of variables and their values
func ParseVariables(html string) (map[string]string, error) {
	variables := make(map[string]string)

	re := regexp.MustCompile(`{{\s*(\w+)\s*}}`)
	matches := re.FindAllStringSubmatch(html, -1)

	for _, match := range matches {
		variables[match[1]] = match[1]
	}

	return variables, nil
}

// input is a string with variables in the form of {{variable}}
// output is a string with the variables replaced by their values
func ReplaceVariables(input string, variables map[string]string) string {
	for variable, value := range variables {
		input = strings.Replace(input, "{{"+variable+"}}", value, -1)
	}
	return input
}

// convert datatypes.JSON to map[string]string
func JSONToMap(jsonData datatypes.JSON) (map[string]string, error) {
	var result map[string]string
	err := json.Unmarshal(jsonData, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

var (
	bodyCloseRe = regexp.MustCompile(`(?i)</body>`)
	hrefRe      = regexp.MustCompile(`href="([^"]+)"`)
)

// InjectTrackingPixel places the 1x1 beacon image just before </body>, or
// appends it when the html has no body tag.
func InjectTrackingPixel(html, pixelURL string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none"/>`, pixelURL)
	if bodyCloseRe.MatchString(html) {
		return bodyCloseRe.ReplaceAllString(html, pixel+"</body>")
	}
	return html + pixel
}

// RewriteLinks routes every http(s) href through wrap. wrap returning ""
// leaves the original link untouched; mailto, tel and fragment links are
// never rewritten.
func RewriteLinks(html string, wrap func(original string) string) string {
	return hrefRe.ReplaceAllStringFunc(html, func(match string) string {
		sub := hrefRe.FindStringSubmatch(match)
		original := sub[1]
		lower := strings.ToLower(original)
		if strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") ||
			strings.HasPrefix(original, "#") {
			return match
		}
		wrapped := wrap(original)
		if wrapped == "" {
			return match
		}
		return fmt.Sprintf(`href="%s"`, wrapped)
	})
}

// AppendUnsubscribeFooter adds the mandated unsubscribe link ahead of the
// closing body tag.
func AppendUnsubscribeFooter(html, unsubscribeURL string) string {
	footer := fmt.Sprintf(
		`<p style="font-size:12px;color:#888">You are receiving this email because you subscribed. <a href="%s">Unsubscribe</a></p>`,
		unsubscribeURL,
	)
	if bodyCloseRe.MatchString(html) {
		return bodyCloseRe.ReplaceAllString(html, footer+"</body>")
	}
	return html + footer
}
