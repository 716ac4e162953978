package portals

import (
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"carrier-reports/internal/profiles"
)

const defaultDateLayout = "2006-01-02"

// Variables are the ${name} placeholders available to step values
type Variables map[string]string

// NewVariables builds the placeholder set for one session
func NewVariables(creds Credentials, from, to time.Time, layout string) Variables {
	if layout == "" {
		layout = defaultDateLayout
	}
	return Variables{
		"username": creds.Username,
		"password": creds.Password,
		"from":     from.Format(layout),
		"to":       to.Format(layout),
	}
}

// Expand replaces known ${name} placeholders. Unknown placeholders and bare
// dollar signs are left untouched.
func (v Variables) Expand(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		end += start

		name := s[start+2 : end]
		value, ok := v[name]
		if !ok {
			value = s[start : end+1]
		}
		b.WriteString(s[:start])
		b.WriteString(value)
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

// usesCredentials reports whether any step value needs the login
func usesCredentials(steps []profiles.Step) bool {
	for _, step := range steps {
		if strings.Contains(step.Value, "${username}") || strings.Contains(step.Value, "${password}") {
			return true
		}
	}
	return false
}

// selector turns a target into a chromedp selector and query option.
// Attribute lookups go through CSS; xpath and text through DOM search.
func selector(t profiles.Target) (string, chromedp.QueryOption, error) {
	switch t.By {
	case profiles.ByID:
		return fmt.Sprintf(`[id="%s"]`, cssEscape(t.Value)), chromedp.ByQuery, nil
	case profiles.ByName:
		return fmt.Sprintf(`[name="%s"]`, cssEscape(t.Value)), chromedp.ByQuery, nil
	case profiles.ByPlaceholder:
		return fmt.Sprintf(`[placeholder="%s"]`, cssEscape(t.Value)), chromedp.ByQuery, nil
	case profiles.ByCSS:
		return t.Value, chromedp.ByQuery, nil
	case profiles.ByXPath:
		return t.Value, chromedp.BySearch, nil
	case profiles.ByText:
		lit := xpathLiteral(t.Value)
		return fmt.Sprintf(`//*[normalize-space(text())=%s or normalize-space(@value)=%s]`, lit, lit), chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("unknown target strategy %q", t.By)
	}
}

var cssEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func cssEscape(s string) string {
	return cssEscaper.Replace(s)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
