package push

import (
	"fmt"
	"strings"

	"PaperDigest/internal/domain"
)

// renderDigest produces the plain-text rendition shared by the outbound
// channels: a counts header followed by one block per paper.
func renderDigest(digest domain.Digest) string {
	var b strings.Builder

	topic := digest.Topic
	if digest.Category != "" && digest.Category != "all" {
		topic = fmt.Sprintf("%s/%s", digest.Category, digest.Topic)
	}
	fmt.Fprintf(&b, "Latest research on %q: %d papers (%d new, %d from cache)\n\n",
		topic, len(digest.Papers), digest.NewCount, digest.CachedCount)

	for i, paper := range digest.Papers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, paper.Title)
		if len(paper.Authors) > 0 {
			fmt.Fprintf(&b, "Authors: %s\n", formatAuthors(paper.Authors))
		}
		if len(paper.Categories) > 0 {
			fmt.Fprintf(&b, "Categories: %s\n", strings.Join(paper.Categories, ", "))
		}
		b.WriteString(paper.Digest)
		b.WriteString("\n")
		if paper.PDFURL != "" {
			fmt.Fprintf(&b, "%s\n", paper.PDFURL)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatAuthors keeps the first three names and marks the rest as et al.
func formatAuthors(authors []string) string {
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + " et al."
}
