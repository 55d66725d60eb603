package graph

import "fmt"

// Label names a resource. Labels are the only way passes refer to buffer groups, bind groups and
// textures; they are resolved to dense indices once at compile time.
type Label string

// Namespace is one of the independent label spaces. A label must be unique within its namespace,
// but the same string may name a texture and a bind group at once.
type Namespace int

const (
	NamespaceBufferGroups Namespace = iota
	NamespaceBindGroups
	NamespaceTextures
	NamespaceNodes
)

func (n Namespace) String() string {
	switch n {
	case NamespaceBufferGroups:
		return "buffer group"
	case NamespaceBindGroups:
		return "bind group"
	case NamespaceTextures:
		return "texture"
	case NamespaceNodes:
		return "node"
	default:
		return fmt.Sprintf("namespace(%d)", int(n))
	}
}

// labelTable interns the labels of one namespace into dense indices in insertion order.
type labelTable struct {
	ns     Namespace
	index  map[Label]int
	labels []Label
}

func newLabelTable(ns Namespace) *labelTable {
	return &labelTable{ns: ns, index: make(map[Label]int)}
}

// intern assigns the next index to l. Empty and repeated labels are rejected.
func (t *labelTable) intern(l Label) (int, error) {
	if l == "" {
		return -1, newError(ErrInvalidDescriptor, t.ns, l, "", fmt.Errorf("empty %s label", t.ns))
	}
	if _, ok := t.index[l]; ok {
		return -1, newError(ErrDuplicateLabel, t.ns, l, "", nil)
	}
	i := len(t.labels)
	t.index[l] = i
	t.labels = append(t.labels, l)
	return i, nil
}

func (t *labelTable) lookup(l Label) (int, bool) {
	i, ok := t.index[l]
	return i, ok
}

func (t *labelTable) label(i int) Label {
	return t.labels[i]
}

func (t *labelTable) len() int {
	return len(t.labels)
}

func (t *labelTable) clone() *labelTable {
	c := newLabelTable(t.ns)
	for _, l := range t.labels {
		c.index[l] = len(c.labels)
		c.labels = append(c.labels, l)
	}
	return c
}
