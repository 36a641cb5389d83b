package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultContentLimit bounds how much extracted paper text is sent to a
// model; beyond it the tail is dropped.
const defaultContentLimit = 30000

var reasoningExpr = regexp.MustCompile(`(?s)<think>.*?</think>`)

const promptTemplate = `Provide a clear and concise summary of this research paper. Focus on:
1. The main research question or problem
2. Key methodology or approach
3. Main findings or contributions
4. Practical implications or applications

Format the summary as markdown bullet points of the form "- **Point:** content...",
one bullet per focus area. Keep it accessible to a general academic audience and
under 300 words. Do not wrap the output in a code fence and do not use tables.

Paper Title: %s

Paper Content:
%s`

// buildPrompt renders the shared summarization prompt with the content
// truncated to the byte budget.
func buildPrompt(content, title string, limit int) string {
	if limit <= 0 {
		limit = defaultContentLimit
	}
	if len(content) > limit {
		content = content[:limit]
	}
	return fmt.Sprintf(promptTemplate, title, content)
}

// stripReasoning removes <think>...</think> traces emitted by reasoning
// models before the digest is returned.
func stripReasoning(text string) string {
	return strings.TrimSpace(reasoningExpr.ReplaceAllString(text, ""))
}
