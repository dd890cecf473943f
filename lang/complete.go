package lang

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/wseaton/dagrun/parser"
)

// CompleteAnnotations returns known annotation keywords matching the typed
// prefix, best match first. An empty prefix returns every keyword sorted.
func CompleteAnnotations(prefix string) []string {
	keywords := parser.AnnotationKeywords()
	sort.Strings(keywords)
	if prefix == "" {
		return keywords
	}

	ranks := fuzzy.RankFindFold(prefix, keywords)
	sort.Sort(ranks)
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
	}
	return out
}

// CompleteDependencies returns task names from the tree matching the typed
// prefix, for completing a header's dependency list.
func CompleteDependencies(tree *parser.SourceFile, prefix string) []string {
	var names []string
	for _, task := range tree.Tasks() {
		names = append(names, task.Name.Name)
	}
	sort.Strings(names)
	if prefix == "" {
		return names
	}

	ranks := fuzzy.RankFindFold(prefix, names)
	sort.Sort(ranks)
	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, r.Target)
	}
	return out
}

// ClosestAnnotation suggests the nearest known keyword for a name the file
// spelled some other way, or "" when nothing is close.
func ClosestAnnotation(name string) string {
	ranks := fuzzy.RankFindFold(name, parser.AnnotationKeywords())
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
