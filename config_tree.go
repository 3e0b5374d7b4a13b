package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/karimra/srl-bfd-agent/dnode"
)

var (
	errUnknownPath = errors.New("unknown configuration path")
	errKeyCount    = errors.New("wrong number of list keys")
	errInvalidJSON = errors.New("invalid configuration data")
)

// listKeys names the key leaves of every configuration list, by schema path.
var listKeys = map[string][]string{
	"/bfd/profile":             {"name"},
	"/bfd/sessions/single-hop": {"dest-addr", "interface", "vrf"},
	"/bfd/sessions/multi-hop":  {"source-addr", "dest-addr", "interface", "vrf"},
}

type configOp uint8

const (
	configSet configOp = iota
	configDelete
)

// yangName turns an NDK JSON or JS path element into its YANG name.
func yangName(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

// splitJsPath splits ".bfd.sessions.single_hop{.dest_addr==...}" into its
// element names, dropping key predicates.
func splitJsPath(jsPath string) []string {
	var elems []string
	var sb strings.Builder
	depth := 0
	for _, r := range jsPath {
		switch {
		case r == '{':
			depth++
		case r == '}':
			depth--
		case depth > 0:
		case r == '.':
			if sb.Len() > 0 {
				elems = append(elems, yangName(sb.String()))
				sb.Reset()
			}
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() > 0 {
		elems = append(elems, yangName(sb.String()))
	}
	return elems
}

// resolve walks tree along jsPath, consuming keys for every list on the way.
// Missing nodes are created when create is set.
func resolve(tree *dnode.Node, jsPath string, keys []string, create bool) (*dnode.Node, error) {
	elems := splitJsPath(jsPath)
	if len(elems) == 0 {
		return nil, fmt.Errorf("%q: %w", jsPath, errUnknownPath)
	}
	cur := tree
	schema := ""
	for _, name := range elems {
		schema += "/" + name
		names, isList := listKeys[schema]
		if !isList {
			next := cur.Find(name)
			if next == nil {
				if !create {
					return nil, nil
				}
				next = cur.Container(name)
			}
			cur = next
			continue
		}
		if len(keys) < len(names) {
			return nil, fmt.Errorf("%s: %w", jsPath, errKeyCount)
		}
		kvs := make([]dnode.KV, 0, len(names))
		match := make(map[string]string, len(names))
		for i, n := range names {
			kvs = append(kvs, dnode.KV{Name: n, Value: keys[i]})
			match[n] = keys[i]
		}
		keys = keys[len(names):]
		var entry *dnode.Node
		cur.Iterate(name, match, func(e *dnode.Node) bool {
			entry = e
			return false
		})
		if entry == nil {
			if !create {
				return nil, nil
			}
			entry = cur.Entry(name, kvs...)
		}
		cur = entry
	}
	if len(keys) != 0 {
		return nil, fmt.Errorf("%s: %w", jsPath, errKeyCount)
	}
	return cur, nil
}

// applyConfig applies one configuration notification to tree.
func applyConfig(tree *dnode.Node, op configOp, jsPath string, keys []string, data string) error {
	if op == configDelete {
		n, err := resolve(tree, jsPath, keys, false)
		if err != nil || n == nil {
			return err
		}
		if p := n.Parent(); p != nil {
			p.Remove(n)
		}
		return nil
	}

	n, err := resolve(tree, jsPath, keys, true)
	if err != nil {
		return err
	}
	if data == "" {
		return nil
	}
	if !gjson.Valid(data) {
		return fmt.Errorf("%s: %w", jsPath, errInvalidJSON)
	}
	body := gjson.Parse(data)
	// list entries and containers are sent wrapped in their own name
	if inner := body.Get(strings.ReplaceAll(n.Name(), "-", "_")); inner.IsObject() && len(body.Map()) == 1 {
		body = inner
	}
	setLeaves(n, body)
	return nil
}

// setLeaves replaces the non-key leaves of n with the scalars of body and
// descends into nested containers. Lists are sent in their own
// notifications and left alone.
func setLeaves(n *dnode.Node, body gjson.Result) {
	seen := make(map[string]bool)
	body.ForEach(func(k, v gjson.Result) bool {
		name := yangName(k.String())
		if v.IsObject() && !v.Get("value").Exists() {
			if _, isList := listKeys[n.SchemaPath()+"/"+name]; !isList {
				setLeaves(n.Container(name), v)
			}
			return true
		}
		if v.IsArray() {
			return true
		}
		if c := n.Find(name); c != nil && c.IsKey() {
			return true
		}
		val := v
		if v.IsObject() {
			val = v.Get("value")
		}
		seen[name] = true
		n.SetLeaf(name, val.String())
		return true
	})
	for _, c := range append([]*dnode.Node(nil), n.Children()...) {
		if c.IsLeaf() && !c.IsKey() && !seen[c.Name()] {
			n.Remove(c)
		}
	}
}
