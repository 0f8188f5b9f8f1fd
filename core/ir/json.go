package ir

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case TypeMap:
		m, _ := v.AsMap()
		return m.MarshalJSON()
	}
	return json.Marshal(v.Interface())
}

// MarshalJSON encodes the properties as a JSON object in insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonNode is the wire shape of a Node.
type jsonNode struct {
	Kind     Kind       `json:"kind"`
	Props    Properties `json:"props,omitempty"`
	Children []*Node    `json:"children,omitempty"`
	Span     *Span      `json:"span,omitempty"`
}

// MarshalJSON encodes the node and its subtree.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	if n.Props.Len() == 0 {
		return json.Marshal(struct {
			Kind     Kind    `json:"kind"`
			Children []*Node `json:"children,omitempty"`
			Span     *Span   `json:"span,omitempty"`
		}{n.Kind, n.Children, n.Span})
	}
	return json.Marshal(jsonNode{Kind: n.Kind, Props: n.Props, Children: n.Children, Span: n.Span})
}

// Report is the JSON shape of one reader result.
type Report struct {
	Format    string            `json:"format"`
	LossClass LossClass         `json:"loss_class"`
	Document  *Document         `json:"document"`
	Warnings  []FidelityWarning `json:"warnings"`
}

// NewReport summarises res. Warnings are never nil, so they encode as a
// list.
func NewReport(format string, res *ConversionResult[*Document]) *Report {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []FidelityWarning{}
	}
	return &Report{
		Format:    format,
		LossClass: res.LossReport(format).LossClass,
		Document:  res.Value,
		Warnings:  warnings,
	}
}
