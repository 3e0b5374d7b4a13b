// Package hclconf reads the agent startup configuration, an HCL file
// describing BFD profiles and sessions, into a configuration tree.
//
//	profile "fast" {
//	  desired_transmission_interval = 20000
//	  required_receive_interval     = defaults.required_receive_interval / 10
//	}
//
//	single_hop "fe80::1" {
//	  interface = "ethernet-1/1.0"
//	  profile   = "fast"
//	}
//
//	multi_hop "192.0.2.1" {
//	  source_addr = "192.0.2.254"
//	  minimum_ttl = 250
//	}
package hclconf

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/karimra/srl-bfd-agent/bfd"
	"github.com/karimra/srl-bfd-agent/dnode"
)

var (
	ErrDuplicate        = errors.New("duplicate definition")
	ErrMissingSource    = errors.New("multi_hop requires source_addr")
	ErrSingleHopOnlyTTL = errors.New("minimum_ttl is only valid for multi_hop")
)

type hclFile struct {
	Profiles  []*hclProfile `hcl:"profile,block"`
	SingleHop []*hclSession `hcl:"single_hop,block"`
	MultiHop  []*hclSession `hcl:"multi_hop,block"`
}

type hclProfile struct {
	Name   string   `hcl:"name,label"`
	Remain hcl.Body `hcl:",remain"`
}

type hclSession struct {
	Dest      string   `hcl:"dest_addr,label"`
	Source    *string  `hcl:"source_addr,optional"`
	Interface *string  `hcl:"interface,optional"`
	VRF       *string  `hcl:"vrf,optional"`
	Profile   *string  `hcl:"profile,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

// hclParams are the parameter attributes shared by profiles and sessions.
type hclParams struct {
	DetectMultiplier *uint32 `hcl:"detection_multiplier,optional"`
	MinTx            *uint32 `hcl:"desired_transmission_interval,optional"`
	MinRx            *uint32 `hcl:"required_receive_interval,optional"`
	EchoInterval     *uint32 `hcl:"desired_echo_transmission_interval,optional"`
	AdminDown        *bool   `hcl:"administrative_down,optional"`
	Passive          *bool   `hcl:"passive_mode,optional"`
	Echo             *bool   `hcl:"echo_mode,optional"`
	MinimumTTL       *uint32 `hcl:"minimum_ttl,optional"`
}

// Load parses the file at path.
func Load(path string) (*dnode.Node, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decode(f, path)
}

// Parse parses src, filename is only used in diagnostics.
func Parse(src []byte, filename string) (*dnode.Node, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) (*dnode.Node, error) {
	ectx := evalContext()
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, ectx, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	root := dnode.NewRoot()
	top := root.Container("bfd")
	for _, p := range parsed.Profiles {
		if top.Iterate("profile", map[string]string{"name": p.Name}, nil) > 0 {
			return nil, fmt.Errorf("profile %q: %w", p.Name, ErrDuplicate)
		}
		var params hclParams
		if diags := gohcl.DecodeBody(p.Remain, ectx, &params); diags.HasErrors() {
			return nil, fmt.Errorf("profile %q: %w", p.Name, diags)
		}
		params.set(top.Entry("profile", dnode.KV{Name: "name", Value: p.Name}))
	}
	for _, s := range parsed.SingleHop {
		if err := s.add(top, false, ectx); err != nil {
			return nil, err
		}
	}
	for _, s := range parsed.MultiHop {
		if err := s.add(top, true, ectx); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (s *hclSession) add(top *dnode.Node, multiHop bool, ectx *hcl.EvalContext) error {
	list := "single-hop"
	if multiHop {
		list = "multi-hop"
	}
	var params hclParams
	if diags := gohcl.DecodeBody(s.Remain, ectx, &params); diags.HasErrors() {
		return fmt.Errorf("%s %q: %w", list, s.Dest, diags)
	}
	if !multiHop && params.MinimumTTL != nil {
		return fmt.Errorf("%s %q: %w", list, s.Dest, ErrSingleHopOnlyTTL)
	}

	keys := []dnode.KV{
		{Name: "dest-addr", Value: s.Dest},
		{Name: "interface", Value: deref(s.Interface, bfd.WildcardInterface)},
		{Name: "vrf", Value: deref(s.VRF, bfd.DefaultVRF)},
	}
	if multiHop {
		if s.Source == nil {
			return fmt.Errorf("%s %q: %w", list, s.Dest, ErrMissingSource)
		}
		keys = append([]dnode.KV{{Name: "source-addr", Value: *s.Source}}, keys...)
	}
	sessions := top.Container("sessions")
	match := make(map[string]string, len(keys))
	for _, kv := range keys {
		match[kv.Name] = kv.Value
	}
	if sessions.Iterate(list, match, nil) > 0 {
		return fmt.Errorf("%s %q: %w", list, s.Dest, ErrDuplicate)
	}

	entry := sessions.Entry(list, keys...)
	if !multiHop && s.Source != nil {
		entry.SetLeaf("source-addr", *s.Source)
	}
	if s.Profile != nil {
		entry.SetLeaf("profile", *s.Profile)
	}
	params.set(entry)
	return nil
}

// set writes every attribute present as a leaf of n.
func (p *hclParams) set(n *dnode.Node) {
	uints := []struct {
		f bfd.Field
		v *uint32
	}{
		{bfd.FieldDetectMultiplier, p.DetectMultiplier},
		{bfd.FieldMinTx, p.MinTx},
		{bfd.FieldMinRx, p.MinRx},
		{bfd.FieldEchoInterval, p.EchoInterval},
		{bfd.FieldMinimumTTL, p.MinimumTTL},
	}
	for _, u := range uints {
		if u.v != nil {
			n.SetLeaf(u.f.String(), strconv.FormatUint(uint64(*u.v), 10))
		}
	}
	bools := []struct {
		f bfd.Field
		v *bool
	}{
		{bfd.FieldAdminDown, p.AdminDown},
		{bfd.FieldPassive, p.Passive},
		{bfd.FieldEcho, p.Echo},
	}
	for _, b := range bools {
		if b.v != nil {
			n.SetLeaf(b.f.String(), strconv.FormatBool(*b.v))
		}
	}
}

// evalContext exposes the built-in defaults as the defaults object.
func evalContext() *hcl.EvalContext {
	d := bfd.DefaultParams()
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"defaults": cty.ObjectVal(map[string]cty.Value{
				"detection_multiplier":               cty.NumberUIntVal(uint64(d.DetectMultiplier)),
				"desired_transmission_interval":      cty.NumberUIntVal(uint64(d.MinTx)),
				"required_receive_interval":          cty.NumberUIntVal(uint64(d.MinRx)),
				"desired_echo_transmission_interval": cty.NumberUIntVal(uint64(d.EchoInterval)),
				"minimum_ttl":                        cty.NumberUIntVal(uint64(d.MinimumTTL)),
				"administrative_down":                cty.BoolVal(d.AdminDown),
				"passive_mode":                       cty.BoolVal(d.Passive),
				"echo_mode":                          cty.BoolVal(d.Echo),
			}),
		},
	}
}

func deref(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
