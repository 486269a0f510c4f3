package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type tagRenderer struct{}

func (r *tagRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindTag, r.renderTag)
}

// renderTag writes a link for linkable tags and a span otherwise.
func (r *tagRenderer) renderTag(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*TagNode)
	class := "tag tag-" + string(n.Ref.Kind)

	if n.Ref.Href != "" {
		_, _ = w.WriteString(`<a class="` + class + `" href="`)
		_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(n.Ref.Href), true)))
		_, _ = w.WriteString(`">`)
		_, _ = w.Write(util.EscapeHTML(n.Raw))
		_, _ = w.WriteString(`</a>`)
		return ast.WalkSkipChildren, nil
	}
	_, _ = w.WriteString(`<span class="` + class + `">`)
	_, _ = w.Write(util.EscapeHTML(n.Raw))
	_, _ = w.WriteString(`</span>`)
	return ast.WalkSkipChildren, nil
}
