package util

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	goldmarkutil "github.com/yuin/goldmark/util"
)

// Rendered status HTML is broadcast to untrusted remote viewers, so
// every link must open in a new context and carry ugc/noopener rel
// attributes, and the output is sanitized before it leaves the server.

const linkRel = "noopener noreferrer ugc"

type linkAttributes struct{}

func (linkAttributes) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink:
			n.SetAttributeString("target", []byte("_blank"))
			n.SetAttributeString("rel", []byte(linkRel))
		}
		return ast.WalkContinue, nil
	})
}

var markdown = goldmark.New(
	goldmark.WithParserOptions(
		parser.WithASTTransformers(
			goldmarkutil.Prioritized(linkAttributes{}, 100),
		),
	),
)

var sanitizer = newSanitizer()

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("target", "rel").OnElements("a")
	return p
}

// RenderContent converts markdown input to sanitized HTML suitable for
// federation.
func RenderContent(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}

// SanitizeHTML strips disallowed markup from HTML received over
// federation.
func SanitizeHTML(input string) string {
	return sanitizer.Sanitize(input)
}
