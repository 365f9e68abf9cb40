package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrNoFrontMatter is returned by ParseFrontMatter for plain markdown.
var ErrNoFrontMatter = errors.New("no front matter")

// ParseFrontMatter splits a content file into its front matter, body and the
// front matter format (yaml, toml or json). YAML is fenced by ---, TOML by
// +++, and a file that is a single JSON object is all front matter.
func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, error) {
	str := normalizeLineEndings(string(content))

	if raw, body, ok := splitFrontMatter(str, "---"); ok {
		fm := map[string]interface{}{}
		if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
			return nil, "", "", fmt.Errorf("parse yaml front matter: %w", err)
		}
		return sanitizeFrontMatter(fm), strings.TrimSpace(body), "yaml", nil
	}

	if raw, body, ok := splitFrontMatter(str, "+++"); ok {
		fm := map[string]interface{}{}
		if err := toml.Unmarshal([]byte(raw), &fm); err != nil {
			return nil, "", "", fmt.Errorf("parse toml front matter: %w", err)
		}
		return fm, strings.TrimSpace(body), "toml", nil
	}

	if strings.HasPrefix(strings.TrimSpace(str), "{") {
		var fm map[string]interface{}
		if err := json.Unmarshal(content, &fm); err == nil {
			return fm, "", "json", nil
		}
	}

	return nil, str, "", ErrNoFrontMatter
}

// FrontMatterTitle returns the string title key of fm, if any.
func FrontMatterTitle(fm map[string]interface{}) string {
	if t, ok := fm["title"].(string); ok {
		return t
	}
	return ""
}

// splitFrontMatter cuts a block fenced by delim lines off the top of s.
func splitFrontMatter(s, delim string) (string, string, bool) {
	open := delim + "\n"
	if !strings.HasPrefix(s, open) {
		return "", "", false
	}
	rest := s[len(open):]
	if strings.HasPrefix(rest, open) {
		return "", rest[len(open):], true
	}
	if rest == delim {
		return "", "", true
	}
	closing := "\n" + delim + "\n"
	if idx := strings.Index(rest, closing); idx >= 0 {
		return rest[:idx], rest[idx+len(closing):], true
	}
	if strings.HasSuffix(rest, "\n"+delim) {
		return rest[:len(rest)-len(delim)-1], "", true
	}
	return "", "", false
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

// sanitizeFrontMatterValue turns map[interface{}]interface{} values into
// string keyed maps so the result can be encoded as JSON.
func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

func normalizeLineEndings(input string) string {
	return strings.ReplaceAll(input, "\r\n", "\n")
}
