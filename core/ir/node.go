package ir

import "strings"

// Node is one element of the document tree.
type Node struct {
	Kind     Kind
	Props    Properties
	Children []*Node
	Span     *Span
}

// New creates a node of the given kind.
func New(kind Kind) *Node {
	return &Node{Kind: kind}
}

// Text creates a text node holding s.
func Text(s string) *Node {
	return New(KindText).Str(PropContent, s)
}

// Set stores a property and returns n for chaining.
func (n *Node) Set(key string, v Value) *Node {
	n.Props.Set(key, v)
	return n
}

// Str stores a string property.
func (n *Node) Str(key, s string) *Node {
	n.Props.SetString(key, s)
	return n
}

// Int stores an integer property.
func (n *Node) Int(key string, v int64) *Node {
	n.Props.SetInt(key, v)
	return n
}

// Bool stores a boolean property.
func (n *Node) Bool(key string, b bool) *Node {
	n.Props.SetBool(key, b)
	return n
}

// Append adds children, skipping nils.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// At attaches a span. A nil span leaves the node without one.
func (n *Node) At(span *Span) *Node {
	n.Span = span
	return n
}

// Content returns the "content" property, or "".
func (n *Node) Content() string {
	s, _ := n.Props.GetString(PropContent)
	return s
}

// Level returns the "level" property, or 0.
func (n *Node) Level() int {
	v, _ := n.Props.GetInt(PropLevel)
	return int(v)
}

// Is reports whether n has the given kind.
func (n *Node) Is(kind Kind) bool {
	return n != nil && n.Kind == kind
}

// PlainText concatenates the content of every text, code and math node
// below n, in document order.
func (n *Node) PlainText() string {
	var b strings.Builder
	Walk(n, func(c *Node, _ int) bool {
		switch c.Kind {
		case KindText, KindCode, KindMathInline:
			b.WriteString(c.Content())
		case KindSoftBreak, KindLineBreak:
			b.WriteByte(' ')
		}
		return true
	})
	return b.String()
}

// Find returns every node below n (including n) whose kind matches.
func (n *Node) Find(kind Kind) []*Node {
	var out []*Node
	Walk(n, func(c *Node, _ int) bool {
		if c.Kind == kind {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Kind: n.Kind, Props: n.Props.Clone()}
	if n.Span != nil {
		s := *n.Span
		c.Span = &s
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if n == nil {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}
