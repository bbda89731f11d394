package document

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/reqlens/internal/requirement"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTMLToMarkdown converts an HTML document to GitHub flavored markdown.
func HTMLToMarkdown(html string) (string, error) {
	html = scriptRe.ReplaceAllString(html, "")
	html = styleRe.ReplaceAllString(html, "")

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return out, nil
}

// RenderMarkdown renders markdown to plain text laid out for the segmenter:
// headings become label lines, list items keep a bullet or number prefix,
// table rows become one line each and blocks are separated by blank lines.
func RenderMarkdown(src []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	renderBlock(doc, src, &b)
	return strings.TrimSpace(excessiveLinesRe.ReplaceAllString(b.String(), "\n\n")) + "\n"
}

func renderBlock(n ast.Node, src []byte, b *strings.Builder) {
	switch v := n.(type) {
	case *ast.Heading:
		b.WriteString(headingLine(inlineText(v, src)))
		b.WriteString("\n\n")

	case *ast.Paragraph, *ast.TextBlock:
		b.WriteString(strings.TrimSpace(inlineText(v, src)))
		b.WriteString("\n\n")

	case *ast.List:
		renderList(v, src, b)
		b.WriteString("\n")

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := v.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		b.WriteString("\n")

	case *east.Table:
		for row := v.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, requirement.CollapseSpace(inlineText(cell, src)))
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")

	case *ast.HTMLBlock, *ast.ThematicBreak:

	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			renderBlock(c, src, b)
		}
	}
}

func renderList(l *ast.List, src []byte, b *strings.Builder) {
	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		prefix := "- "
		if l.IsOrdered() {
			prefix = fmt.Sprintf("%d. ", num)
			num++
		}
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch child := c.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				b.WriteString(prefix)
				b.WriteString(requirement.CollapseSpace(inlineText(child, src)))
				b.WriteString("\n")
				prefix = "  "
			case *ast.List:
				renderList(child, src, b)
			default:
				renderBlock(c, src, b)
			}
		}
	}
}

// headingLine keeps headings the segmenter already recognizes and turns the
// rest into "Title:" labels.
func headingLine(title string) string {
	title = requirement.CollapseSpace(title)
	if title == "" || requirement.IsHeading(title) {
		return title
	}
	return title + ":"
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	writeInline(n, src, &b)
	return b.String()
}

func writeInline(n ast.Node, src []byte, b *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
		case *ast.RawHTML:
		default:
			writeInline(c, src, b)
		}
	}
}
