package aggregate

import (
	"strings"

	"golang.org/x/text/cases"

	"ytmonitor/youtube"
)

// Filterer keeps videos whose title or description mentions a keyword.
// Matching is a case-insensitive substring test under Unicode case folding.
type Filterer struct{}

// Filter returns the items matching at least one keyword, in input order.
// Blank keywords are ignored; with no usable keyword items is returned as is.
func (Filterer) Filter(items []youtube.Video, keywords []string) []youtube.Video {
	// A Caser holds state and must not be shared between goroutines.
	fold := cases.Fold()

	needles := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			needles = append(needles, fold.String(kw))
		}
	}
	if len(needles) == 0 {
		return items
	}

	out := make([]youtube.Video, 0, len(items))
	for _, item := range items {
		title := fold.String(item.Title)
		desc := fold.String(item.Description)
		for _, n := range needles {
			if strings.Contains(title, n) || strings.Contains(desc, n) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}
