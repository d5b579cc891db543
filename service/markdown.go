package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

// removeCitations removes citation references from generated text:
// - Parenthesized citations like ([1], [2,3])
// - Standalone citations like [1] or [2,3]
// - Leftover empty parentheses
// Returns the cleaned and trimmed text.
func removeCitations(text string) string {
	reParenCitations := regexp.MustCompile(`\s*\(\s*(?:\[\s*\d+(?:\s*,\s*\d+)*\s*\](?:\s*,\s*)?)+\s*\)`)
	text = reParenCitations.ReplaceAllString(text, "")

	reCitations := regexp.MustCompile(`\s*\[\s*\d+(?:\s*,\s*\d+)*\s*\]`)
	text = reCitations.ReplaceAllString(text, "")

	reParens := regexp.MustCompile(`\(\s*[,]*\s*\)`)
	text = reParens.ReplaceAllString(text, "")

	// Clean up extra spaces
	reSpaces := regexp.MustCompile(`[ ]{2,}`)
	text = reSpaces.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Markdown accumulates generated study content and renders it for the
// terminal once a module finishes streaming.
type Markdown struct {
	buffer strings.Builder
}

// NewMarkdown creates a new instance of Markdown
func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (mr *Markdown) Writef(format string, args ...interface{}) {
	mr.buffer.WriteString(fmt.Sprintf(format, args...))
}

func (mr *Markdown) Write(args ...interface{}) {
	mr.buffer.WriteString(fmt.Sprint(args...))
}

func (mr *Markdown) Len() int {
	return mr.buffer.Len()
}

// Render renders the buffered markdown and resets the buffer. On a
// render failure the raw text is returned so content is never lost.
func (mr *Markdown) Render() string {
	output := mr.buffer.String()
	if len(output) == 0 {
		return ""
	}
	mr.buffer.Reset()

	output = removeCitations(output)

	// Render the Markdown using glamour
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Auto-detect dark/light mode
	)
	if err != nil {
		Warnf("Cannot create Markdown renderer: %v", err)
		return output + "\n"
	}

	out, err := tr.Render(output)
	if err != nil {
		Warnf("Cannot render Markdown correctly: %v", err)
		return output + "\n"
	}

	// Ensure output ends with a newline to prevent shells like zsh from
	// displaying % when it doesn't
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
