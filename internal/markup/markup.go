// Package markup parses markup text into a generic element tree using
// tree-sitter.
package markup

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	sitterhtml "github.com/smacker/go-tree-sitter/html"
)

// Kind distinguishes the nodes of a parsed tree.
type Kind uint8

const (
	Document Kind = iota
	Element
	Text
)

// Node is an element or a run of character data. Element names and attribute
// names are local, with any namespace prefix removed.
type Node struct {
	Kind     Kind
	Name     string
	Attrs    map[string]string
	Text     string
	Line     int
	Parent   *Node
	Children []*Node
}

// Elements returns the element children of n in document order.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == Element {
			out = append(out, c)
		}
	}
	return out
}

// FirstElement returns the first element child of n, or nil.
func (n *Node) FirstElement() *Node {
	for _, c := range n.Children {
		if c.Kind == Element {
			return c
		}
	}
	return nil
}

// TextContent returns the character data directly inside n, trimmed.
func (n *Node) TextContent() string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.Kind == Text {
			b.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// SyntaxError reports markup that could not be parsed.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var declRe = regexp.MustCompile(`<\?[^>]*\?>`)

// Parse parses text into a tree rooted at a Document node.
func Parse(text string) (*Node, error) {
	return ParseCtx(context.Background(), text)
}

// ParseCtx is Parse with a context bounding the parse.
func ParseCtx(ctx context.Context, text string) (*Node, error) {
	// Blank out processing instructions so byte offsets and lines survive.
	source := []byte(declRe.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '\n' {
				return r
			}
			return ' '
		}, s)
	}))

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(sitterhtml.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &SyntaxError{Line: errorLine(root), Msg: "malformed markup"}
	}

	doc := &Node{Kind: Document, Line: 1}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if err := build(root.NamedChild(i), doc, source); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func build(n *sitter.Node, parent *Node, source []byte) error {
	switch n.Type() {
	case "element":
		el := &Node{
			Kind:   Element,
			Line:   int(n.StartPoint().Row) + 1,
			Attrs:  map[string]string{},
			Parent: parent,
		}
		// The grammar closes elements implicitly; markup must close them
		// explicitly with a matching end tag.
		var start, end string
		closed := false
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "self_closing_tag":
				readTag(child, el, source)
				closed = true
			case "start_tag":
				start = readTag(child, el, source)
			case "end_tag":
				end = tagName(child, source)
				closed = end == start
			default:
				if err := build(child, el, source); err != nil {
					return err
				}
			}
		}
		if !closed {
			msg := fmt.Sprintf("element <%s> is not closed", start)
			if end != "" {
				msg = fmt.Sprintf("element <%s> is closed by </%s>", start, end)
			}
			return &SyntaxError{Line: el.Line, Msg: msg}
		}
		parent.Children = append(parent.Children, el)
	case "text", "entity":
		parent.Children = append(parent.Children, &Node{
			Kind:   Text,
			Text:   html.UnescapeString(nodeText(n, source)),
			Line:   int(n.StartPoint().Row) + 1,
			Parent: parent,
		})
	case "comment", "doctype":
	case "erroneous_end_tag":
		return &SyntaxError{
			Line: int(n.StartPoint().Row) + 1,
			Msg:  fmt.Sprintf("unexpected end tag %q", nodeText(n, source)),
		}
	default:
		return &SyntaxError{
			Line: int(n.StartPoint().Row) + 1,
			Msg:  fmt.Sprintf("unsupported %s", n.Type()),
		}
	}
	return nil
}

// readTag fills el from a start or self-closing tag and returns the tag
// name as written.
func readTag(tag *sitter.Node, el *Node, source []byte) string {
	var raw string
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		child := tag.NamedChild(i)
		switch child.Type() {
		case "tag_name":
			raw = nodeText(child, source)
			el.Name = localName(raw)
		case "attribute":
			name, value := readAttribute(child, source)
			el.Attrs[localName(name)] = value
		}
	}
	return raw
}

func tagName(tag *sitter.Node, source []byte) string {
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		if child := tag.NamedChild(i); child.Type() == "tag_name" {
			return nodeText(child, source)
		}
	}
	return ""
}

func readAttribute(attr *sitter.Node, source []byte) (string, string) {
	var name, value string
	for i := 0; i < int(attr.NamedChildCount()); i++ {
		child := attr.NamedChild(i)
		switch child.Type() {
		case "attribute_name":
			name = nodeText(child, source)
		case "attribute_value":
			value = nodeText(child, source)
		case "quoted_attribute_value":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if v := child.NamedChild(j); v.Type() == "attribute_value" {
					value = nodeText(v, source)
				}
			}
		}
	}
	return name, html.UnescapeString(value)
}

func errorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.HasError() || c.IsMissing() {
			return errorLine(c)
		}
	}
	return int(n.StartPoint().Row) + 1
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func nodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}
