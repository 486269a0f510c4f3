package markdown

import (
	"github.com/yuin/goldmark/ast"

	"github.com/hrygo/bookcircle/plugin/tagging"
)

// KindTag is the node kind of inline tags.
var KindTag = ast.NewNodeKind("Tag")

// TagNode is an inline @mention or #hashtag resolved for display.
type TagNode struct {
	ast.BaseInline

	Ref tagging.TagRef
	// Raw is the tag as written, trigger included.
	Raw []byte
}

// Kind implements ast.Node.
func (n *TagNode) Kind() ast.NodeKind {
	return KindTag
}

// Dump implements ast.Node.
func (n *TagNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Raw":  string(n.Raw),
		"Type": string(n.Ref.Kind),
		"Href": n.Ref.Href,
	}, nil)
}
