package nb

import (
	"context"
	"errors"
	"fmt"

	"github.com/karimra/srl-bfd-agent/bfd"
)

var profileLeaves = map[string]bfd.Field{
	"detection-multiplier":               bfd.FieldDetectMultiplier,
	"desired-transmission-interval":      bfd.FieldMinTx,
	"required-receive-interval":          bfd.FieldMinRx,
	"desired-echo-transmission-interval": bfd.FieldEchoInterval,
	"administrative-down":                bfd.FieldAdminDown,
	"passive-mode":                       bfd.FieldPassive,
	"echo-mode":                          bfd.FieldEcho,
	"minimum-ttl":                        bfd.FieldMinimumTTL,
}

var errEmptyProfileName = errors.New("profile name is empty")

func (c *Coordinator) registerProfileSchema() {
	c.handle(pathProfile, callbacks{
		create: phases{
			EventValidate: profileCreateValidate,
			EventApply:    profileCreateApply,
			EventAbort:    profileCreateAbort,
		},
		destroy: phases{
			EventValidate: profileDestroyValidate,
			EventApply:    profileDestroyApply,
			EventAbort:    runUndo,
		},
	})
	for leaf, f := range profileLeaves {
		c.handle(pathProfile+"/"+leaf, callbacks{
			modify: phases{
				EventValidate: fieldValidate(f, nil),
				EventApply:    profileFieldModifyApply(f),
				EventAbort:    runUndo,
			},
			destroy: phases{
				EventApply: profileFieldDestroyApply(f),
				EventAbort: runUndo,
			},
		})
	}
}

func profileName(ch *change) string {
	return ch.node.StringOr("./name", "")
}

func profileCreateValidate(_ context.Context, c *Coordinator, ch *change) error {
	name := profileName(ch)
	if name == "" {
		return validationErr(errEmptyProfileName)
	}
	if _, ok := c.profiles.Lookup(name); ok {
		return inconsistencyErr(fmt.Errorf("profile %q: %w", name, bfd.ErrProfileExists))
	}
	return nil
}

func profileCreateApply(ctx context.Context, c *Coordinator, ch *change) error {
	p, err := c.profiles.Create(ctx, profileName(ch))
	if err != nil {
		return resourceErr(err)
	}
	c.bind(ch.node, p)
	ch.resource = p
	return nil
}

func profileCreateAbort(ctx context.Context, c *Coordinator, ch *change) error {
	p, ok := ch.resource.(*bfd.Profile)
	if !ok {
		return nil
	}
	ch.resource = nil
	c.unbind(ch.node)
	return c.profiles.Destroy(ctx, p.Name())
}

func profileDestroyValidate(_ context.Context, c *Coordinator, ch *change) error {
	name := profileName(ch)
	if _, ok := c.profiles.Lookup(name); !ok {
		return inconsistencyErr(fmt.Errorf("profile %q: %w", name, bfd.ErrProfileNotFound))
	}
	return nil
}

func profileDestroyApply(ctx context.Context, c *Coordinator, ch *change) error {
	p, ok := c.profiles.Lookup(profileName(ch))
	if !ok {
		return inconsistencyErr(fmt.Errorf("profile %q: %w", profileName(ch), bfd.ErrProfileNotFound))
	}
	obj := c.unbind(ch.node)
	if err := c.profiles.Destroy(ctx, p.Name()); err != nil {
		if obj != nil {
			c.bind(ch.node, obj)
		}
		return resourceErr(err)
	}
	ch.undo = func(ctx context.Context) {
		if err := c.profiles.Restore(ctx, p); err != nil {
			c.logger.Error("profile restore failed", "profile", p.Name(), "error", err)
		}
		if obj != nil {
			c.bind(ch.node, obj)
		}
	}
	return nil
}

func (c *Coordinator) lookupProfile(ch *change) (*bfd.Profile, error) {
	entry := ch.node.Parent()
	if p, ok := c.bindings[entry.Path()].(*bfd.Profile); ok {
		return p, nil
	}
	name := entry.StringOr("./name", "")
	p, ok := c.profiles.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", name, bfd.ErrProfileNotFound)
	}
	return p, nil
}

// setProfileField writes v through the profile store and records how to put
// the previous value back.
func (c *Coordinator) setProfileField(ctx context.Context, ch *change, f bfd.Field, v uint32) error {
	p, err := c.lookupProfile(ch)
	if err != nil {
		return inconsistencyErr(err)
	}
	params := p.Params()
	prev := params.Value(f)
	if prev == v {
		return nil
	}
	if err := c.profiles.Update(ctx, p.Name(), func(pp *bfd.Params) { pp.SetValue(f, v) }); err != nil {
		return resourceErr(err)
	}
	ch.undo = func(ctx context.Context) {
		_ = c.profiles.Update(ctx, p.Name(), func(pp *bfd.Params) { pp.SetValue(f, prev) })
	}
	return nil
}

func profileFieldModifyApply(f bfd.Field) phaseFunc {
	return func(ctx context.Context, c *Coordinator, ch *change) error {
		v, err := leafValue(ch.node, f)
		if err != nil {
			return resourceErr(err)
		}
		return c.setProfileField(ctx, ch, f, v)
	}
}

// profileFieldDestroyApply puts the field back to its default.
func profileFieldDestroyApply(f bfd.Field) phaseFunc {
	def := bfd.DefaultParams()
	return func(ctx context.Context, c *Coordinator, ch *change) error {
		if _, err := c.lookupProfile(ch); err != nil {
			// the profile went away with its entry
			return nil
		}
		return c.setProfileField(ctx, ch, f, def.Value(f))
	}
}
