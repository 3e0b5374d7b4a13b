// Package dnode is a small YANG-like data tree: containers, keyed list
// entries and leaves, with the typed accessors the northbound handlers use
// and a diff between a running and a candidate tree.
package dnode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("dnode: node not found")

type Kind uint8

const (
	KindContainer Kind = iota
	KindEntry
	KindLeaf
)

// KV is one list key leaf.
type KV struct {
	Name  string
	Value string
}

type Node struct {
	name     string
	kind     Kind
	value    string
	keys     []string // key leaf names of a list entry, in order
	children []*Node
	parent   *Node
}

// NewRoot returns an empty unnamed root container.
func NewRoot() *Node {
	return &Node{kind: KindContainer}
}

func (n *Node) Name() string  { return n.name }
func (n *Node) Kind() Kind    { return n.kind }
func (n *Node) Value() string { return n.value }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) IsLeaf() bool  { return n.kind == KindLeaf }

func (n *Node) Children() []*Node {
	return n.children
}

// IsKey reports whether n is a key leaf of its list entry.
func (n *Node) IsKey() bool {
	if n.kind != KindLeaf || n.parent == nil || n.parent.kind != KindEntry {
		return false
	}
	for _, k := range n.parent.keys {
		if k == n.name {
			return true
		}
	}
	return false
}

// Container returns the named child container, creating it if needed.
func (n *Node) Container(name string) *Node {
	for _, c := range n.children {
		if c.kind == KindContainer && c.name == name {
			return c
		}
	}
	return n.add(&Node{name: name, kind: KindContainer})
}

// Entry returns the list entry with the given keys, creating it if needed.
// Keys are stored as leaf children.
func (n *Node) Entry(name string, keys ...KV) *Node {
	if e := n.findEntry(name, keys); e != nil {
		return e
	}
	e := &Node{name: name, kind: KindEntry}
	for _, kv := range keys {
		e.keys = append(e.keys, kv.Name)
		e.add(&Node{name: kv.Name, kind: KindLeaf, value: kv.Value})
	}
	return n.add(e)
}

// SetLeaf sets or creates a leaf child.
func (n *Node) SetLeaf(name, value string) *Node {
	for _, c := range n.children {
		if c.kind == KindLeaf && c.name == name {
			c.value = value
			return c
		}
	}
	return n.add(&Node{name: name, kind: KindLeaf, value: value})
}

// Remove detaches child from n.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Clone deep-copies n. The copy has no parent.
func (n *Node) Clone() *Node {
	c := &Node{
		name:  n.name,
		kind:  n.kind,
		value: n.value,
		keys:  append([]string(nil), n.keys...),
	}
	for _, ch := range n.children {
		c.add(ch.Clone())
	}
	return c
}

func (n *Node) add(c *Node) *Node {
	c.parent = n
	n.children = append(n.children, c)
	return c
}

func (n *Node) findEntry(name string, keys []KV) *Node {
	for _, c := range n.children {
		if c.kind != KindEntry || c.name != name || len(c.keys) != len(keys) {
			continue
		}
		match := true
		for _, kv := range keys {
			if c.leafValue(kv.Name) != kv.Value {
				match = false
				break
			}
		}
		if match {
			return c
		}
	}
	return nil
}

func (n *Node) leafValue(name string) string {
	for _, c := range n.children {
		if c.kind == KindLeaf && c.name == name {
			return c.value
		}
	}
	return ""
}

// segment renders n as one path element, with key predicates for entries.
func (n *Node) segment() string {
	if n.kind != KindEntry {
		return n.name
	}
	sb := new(strings.Builder)
	sb.WriteString(n.name)
	for _, k := range n.keys {
		fmt.Fprintf(sb, "[%s='%s']", k, n.leafValue(k))
	}
	return sb.String()
}

// Path is the instance path of n. It identifies the node across trees.
func (n *Node) Path() string {
	if n.parent == nil {
		return "/" + n.segment()
	}
	var elems []string
	for c := n; c.parent != nil; c = c.parent {
		elems = append(elems, c.segment())
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return "/" + strings.Join(elems, "/")
}

// SchemaPath is the path of n without list keys.
func (n *Node) SchemaPath() string {
	var elems []string
	for c := n; c.parent != nil; c = c.parent {
		elems = append(elems, c.name)
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return "/" + strings.Join(elems, "/")
}

// Find resolves a relative path of child names, "./a/b" or "a/b". An empty
// path or "." is n itself.
func (n *Node) Find(rel string) *Node {
	rel = strings.TrimPrefix(rel, "./")
	if rel == "" || rel == "." {
		return n
	}
	cur := n
	for _, name := range strings.Split(rel, "/") {
		var next *Node
		for _, c := range cur.children {
			if c.name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func (n *Node) Exists(rel string) bool {
	return n.Find(rel) != nil
}

// Ancestor returns the closest ancestor named name.
func (n *Node) Ancestor(name string) *Node {
	for c := n.parent; c != nil; c = c.parent {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *Node) String(rel string) (string, error) {
	c := n.Find(rel)
	if c == nil || c.kind != KindLeaf {
		return "", fmt.Errorf("%s/%s: %w", n.Path(), rel, ErrNotFound)
	}
	return c.value, nil
}

// StringOr returns the leaf value or def when absent.
func (n *Node) StringOr(rel, def string) string {
	v, err := n.String(rel)
	if err != nil {
		return def
	}
	return v
}

func (n *Node) Uint32(rel string) (uint32, error) {
	return n.uint(rel, 32)
}

func (n *Node) Uint8(rel string) (uint8, error) {
	v, err := n.uint(rel, 8)
	return uint8(v), err
}

func (n *Node) uint(rel string, bits int) (uint32, error) {
	s, err := n.String(rel)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", n.Find(rel).Path(), err)
	}
	return uint32(v), nil
}

func (n *Node) Bool(rel string) (bool, error) {
	s, err := n.String(rel)
	if err != nil {
		return false, err
	}
	switch s {
	case "true", "enable", "enabled":
		return true, nil
	case "false", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid boolean %q", n.Find(rel).Path(), s)
}

// Iterate calls fn for every list entry child of n named list whose leaves
// match all of match. It returns how many entries matched; fn returning
// false stops the walk.
func (n *Node) Iterate(list string, match map[string]string, fn func(*Node) bool) int {
	count := 0
	for _, c := range n.children {
		if c.kind != KindEntry || c.name != list {
			continue
		}
		ok := true
		for k, v := range match {
			if c.leafValue(k) != v {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		count++
		if fn != nil && !fn(c) {
			break
		}
	}
	return count
}
