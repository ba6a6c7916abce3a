package manifest

import "strings"

// MaxKeywordsPerScene caps the keyword list per scene entry.
const MaxKeywordsPerScene = 10

// stopwords are filtered out of keyword extraction. The list covers the
// filler vocabulary captioning models lean on.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "he": {}, "her": {},
	"his": {}, "in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "their": {}, "there": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "were": {}, "which": {}, "with": {},
	"image": {}, "picture": {}, "photo": {}, "frame": {}, "scene": {},
	"shows": {}, "showing": {}, "appears": {}, "visible": {}, "video": {},
}

// ExtractKeywords pulls the distinct content words out of a caption,
// lowercased, in order of first appearance.
func ExtractKeywords(caption string, max int) []string {
	if caption == "" || max <= 0 {
		return nil
	}

	fields := strings.FieldsFunc(strings.ToLower(caption), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})

	seen := make(map[string]struct{})
	keywords := make([]string, 0, max)
	for _, word := range fields {
		word = strings.Trim(word, "'")
		if len(word) < 3 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == max {
			break
		}
	}
	return keywords
}
