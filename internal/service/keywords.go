package service

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

var stopWords = toSet(
	// english
	"a", "an", "the", "and", "or", "but", "if", "then", "else",
	"for", "to", "from", "in", "on", "at", "by", "with", "about",
	"as", "of", "into", "over", "under", "between", "within", "without",
	"is", "are", "was", "were", "be", "been", "being",
	"do", "does", "did", "doing",
	"have", "has", "had", "having",
	"can", "could", "will", "would", "should", "may", "might", "must",
	"i", "me", "my", "mine", "we", "our", "ours", "you", "your", "yours",
	"he", "him", "his", "she", "her", "hers", "they", "them", "their", "theirs",
	"this", "that", "these", "those",
	"it", "its",
	"what", "which", "who", "whom", "whose", "why", "how",
	"all", "any", "both", "each", "few", "more", "most", "some", "such",
	"no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
	"just", "also", "again", "once", "here", "there", "when", "where",

	// shopping filler
	"buy", "purchase", "order", "shop", "shopping",
	"product", "products", "item", "items",
	"show", "find", "get", "give", "want", "need", "looking",
	"cheap", "cheaper", "cheapest", "low", "lowest",
	"best", "top", "good", "better", "great",
	"latest", "new", "newest",
	"available", "availability",
	"price", "cost", "budget", "range",
	"below", "above",
	"near", "around", "approx",
	"please", "plz", "kindly",
	"suggest", "recommend", "recommendation",
	"like", "similar", "something",

	// numbers
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	"twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety", "hundred", "thousand",

	// currency shorthands
	"k", "rs", "rupees", "inr",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ExtractKeywords lowercases the prompt, strips punctuation and drops stop words
func ExtractKeywords(prompt string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(prompt), "")

	var keywords []string
	for _, w := range strings.Fields(cleaned) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

func likePatterns(keywords []string) []string {
	patterns := make([]string, len(keywords))
	for i, k := range keywords {
		patterns[i] = "%" + k + "%"
	}
	return patterns
}
