package script

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText flattens markdown-ish model output into plain spoken text.
// Models occasionally decorate narration with emphasis markers, headings or
// list bullets despite instructions; the synthesizer would read those
// characters out loud, so they are stripped by walking the markdown AST and
// keeping only the text segments.
func PlainText(input string) string {
	src := []byte(input)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus,
		error) {

		if !entering {
			// Blocks end a spoken unit: separate them with a
			// space so adjacent paragraphs do not run together.
			if _, isText := n.(*ast.Text); !isText &&
				n.Type() == ast.TypeBlock {

				sb.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}

		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(sb.String()), " ")
}
