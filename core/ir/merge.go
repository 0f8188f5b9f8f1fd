package ir

// MergeText coalesces runs of adjacent text siblings into single nodes and
// drops empty text nodes. Spans of merged nodes are unioned when every part
// has one. MergeText is idempotent and returns a new slice; the input nodes
// are not modified.
func MergeText(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind != KindText {
			out = append(out, n)
			continue
		}
		content := n.Content()
		if content == "" {
			continue
		}
		if last := len(out) - 1; last >= 0 && out[last].Kind == KindText && out[last].Props.Len() == 1 && n.Props.Len() == 1 {
			prev := out[last]
			merged := Text(prev.Content() + content)
			if prev.Span != nil && n.Span != nil {
				u := prev.Span.Union(*n.Span)
				merged.Span = &u
			}
			out[last] = merged
			continue
		}
		out = append(out, n)
	}
	return out
}

// MergeTextDeep applies MergeText to the children of every node below n.
func MergeTextDeep(n *Node) {
	Walk(n, func(c *Node, _ int) bool {
		if len(c.Children) > 0 {
			c.Children = MergeText(c.Children)
		}
		return true
	})
}
