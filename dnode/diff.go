package dnode

type Op uint8

const (
	OpCreate Op = iota
	OpModify
	OpDestroy
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDestroy:
		return "destroy"
	}
	return "unknown"
}

// Change is one difference between two trees. Created and modified nodes
// belong to the candidate tree, destroyed ones to the running tree.
type Change struct {
	Op   Op
	Node *Node
}

// Diff lists the changes turning running into candidate. Creates and
// modifies come first in tree order, a parent before its children. A created
// leaf is reported as a modify, key leaves are never reported. Destroys come
// last, children before their parent; leaves under a destroyed node are not
// reported. A nil running tree is empty.
func Diff(running, candidate *Node) []Change {
	if running == nil {
		running = NewRoot()
	}
	if candidate == nil {
		candidate = NewRoot()
	}
	d := new(differ)
	d.walk(running, candidate)
	return append(d.changes, d.destroys...)
}

type differ struct {
	changes  []Change
	destroys []Change
}

func (d *differ) walk(old, cur *Node) {
	for _, c := range cur.children {
		if c.IsKey() {
			continue
		}
		o := old.counterpart(c)
		switch {
		case o == nil:
			d.created(c)
		case c.kind == KindLeaf:
			if o.value != c.value {
				d.changes = append(d.changes, Change{Op: OpModify, Node: c})
			}
		default:
			d.walk(o, c)
		}
	}
	for _, o := range old.children {
		if o.IsKey() {
			continue
		}
		if cur.counterpart(o) == nil {
			d.destroyed(o)
		}
	}
}

func (d *differ) created(n *Node) {
	if n.kind == KindLeaf {
		d.changes = append(d.changes, Change{Op: OpModify, Node: n})
		return
	}
	d.changes = append(d.changes, Change{Op: OpCreate, Node: n})
	for _, c := range n.children {
		if !c.IsKey() {
			d.created(c)
		}
	}
}

func (d *differ) destroyed(n *Node) {
	for _, c := range n.children {
		if c.kind != KindLeaf {
			d.destroyed(c)
		}
	}
	d.destroys = append(d.destroys, Change{Op: OpDestroy, Node: n})
}

// counterpart finds the child of n matching other by name, kind and keys.
func (n *Node) counterpart(other *Node) *Node {
	if other.kind == KindEntry {
		keys := make([]KV, 0, len(other.keys))
		for _, k := range other.keys {
			keys = append(keys, KV{Name: k, Value: other.leafValue(k)})
		}
		return n.findEntry(other.name, keys)
	}
	for _, c := range n.children {
		if c.kind == other.kind && c.name == other.name {
			return c
		}
	}
	return nil
}
