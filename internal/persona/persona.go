// Package persona routes news items into themed persona caches and owns the
// cache key layout. The dedup purge cascade matches keys on the same URL
// encoding used here, so writer and purger never drift apart.
package persona

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/thenotsodarkknight/based/internal/news"
)

// Persona is one themed feed: a name plus the keywords that route items into
// its cache.
type Persona struct {
	Name     string
	Keywords []string
}

// Matches reports whether the item belongs in this persona's cache. Any
// keyword appearing case-insensitively in the heading or summary counts.
func (p Persona) Matches(item news.Item) bool {
	if len(p.Keywords) == 0 {
		return false
	}

	haystack := strings.ToLower(item.Heading + " " + item.Summary)
	for _, keyword := range p.Keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// ParseSet parses the PERSONAS config value: semicolon-separated personas,
// each written as name:keyword,keyword. Names are lowercased and must be
// unique; an empty spec yields no personas.
func ParseSet(spec string) ([]Persona, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return nil, nil
	}

	var personas []Persona
	seen := make(map[string]struct{})
	for _, chunk := range strings.Split(trimmed, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		name, keywordList, found := strings.Cut(chunk, ":")
		if !found {
			return nil, fmt.Errorf("persona %q must look like name:keyword,keyword", chunk)
		}
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			return nil, fmt.Errorf("persona %q has an empty name", chunk)
		}
		if strings.ContainsAny(name, "/\\") {
			return nil, fmt.Errorf("persona name %q must not contain path separators", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("persona %q is defined twice", name)
		}
		seen[name] = struct{}{}

		var keywords []string
		for _, keyword := range strings.Split(keywordList, ",") {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			keywords = append(keywords, keyword)
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("persona %q has no keywords", name)
		}

		personas = append(personas, Persona{Name: name, Keywords: keywords})
	}
	return personas, nil
}

// EncodedURL returns the encoding of a source URL as embedded in persona
// cache keys.
func EncodedURL(sourceURL string) string {
	return url.QueryEscape(strings.TrimSpace(sourceURL))
}

// CacheKey builds the object key for one persona's copy of an item.
func CacheKey(prefix, personaName, sourceURL string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + personaName + "/" + EncodedURL(sourceURL) + ".json"
}
