// Package concordia models Concordia schema documents: a structural,
// JSON-Schema-like description of the shape of a JSON value.
//
// An object schema lists its fields as an array under "schema"; an array
// schema describes its element as an object under "schema".
package concordia

import (
	"encoding/json"
	"io"
)

// Primitive and structured Concordia types.
const (
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Node is one schema entry. Name is empty for the root and for array
// elements.
type Node struct {
	Name     string
	Type     string
	Doc      string
	Optional bool

	// Fields holds the members of an object node.
	Fields []Node
	// Elem describes the elements of a constant-type array node. When it
	// is nil, Fields lists the element schemas position by position.
	Elem *Node
}

// Sink receives schema nodes in order.
type Sink interface {
	Append(node Node)
}

// List is a Sink that keeps every appended node.
type List []Node

func (l *List) Append(node Node) {
	*l = append(*l, node)
}

func Field(name, typ string) Node {
	return Node{Name: name, Type: typ}
}

func Object(name string, fields ...Node) Node {
	if fields == nil {
		fields = []Node{}
	}
	return Node{Name: name, Type: TypeObject, Fields: fields}
}

func Array(name string, elem Node) Node {
	return Node{Name: name, Type: TypeArray, Elem: &elem}
}

// Tuple is an array whose elements follow elems in order.
func Tuple(name string, elems ...Node) Node {
	if elems == nil {
		elems = []Node{}
	}
	return Node{Name: name, Type: TypeArray, Fields: elems}
}

// Find returns the direct child field with the given name.
func (n Node) Find(name string) (Node, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Node{}, false
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := struct {
		Name     string `json:"name,omitempty"`
		Type     string `json:"type"`
		Doc      string `json:"doc,omitempty"`
		Optional bool   `json:"optional,omitempty"`
		Schema   any    `json:"schema,omitempty"`
	}{
		Name:     n.Name,
		Type:     n.Type,
		Doc:      n.Doc,
		Optional: n.Optional,
	}

	switch n.Type {
	case TypeObject:
		fields := n.Fields
		if fields == nil {
			fields = []Node{}
		}
		out.Schema = fields
	case TypeArray:
		if n.Elem != nil {
			out.Schema = *n.Elem
		} else {
			fields := n.Fields
			if fields == nil {
				fields = []Node{}
			}
			out.Schema = fields
		}
	}

	return json.Marshal(out)
}

// Write encodes the schema rooted at n to w.
func Write(w io.Writer, n Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}
