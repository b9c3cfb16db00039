package tiling

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Resolve turns a preset into concrete tile geometry. An active override
// replaces preset; Automatic matches serial against rules; Custom uses
// custom as given. The result is set up and validated.
func Resolve(table Table, rules []DeviceRule, preset Preset, overrideActive bool, override Preset, custom Quality, serial string) (Quality, error) {
	if overrideActive {
		preset = override
	}
	if preset == Automatic {
		preset = MatchDevice(rules, serial)
		log.Debug().Str("serial", serial).Stringer("preset", preset).Msg("tiling: automatic device match")
	}

	var q Quality
	switch preset {
	case Automatic:
		return Quality{}, fmt.Errorf("tiling: automatic did not resolve")
	case Custom:
		q = custom
		if q.Name == "" {
			q.Name = "Custom"
		}
		q.Setup()
	default:
		var err error
		if q, err = table.For(preset); err != nil {
			return Quality{}, err
		}
	}
	if err := q.Validate(); err != nil {
		return Quality{}, fmt.Errorf("resolve %s: %w", preset, err)
	}
	return q, nil
}

// Resolver binds the table, device rules and shared override.
type Resolver struct {
	Table    Table
	Rules    []DeviceRule
	Override *Override
}

func NewResolver(ov *Override) *Resolver {
	if ov == nil {
		ov = &Override{}
	}
	return &Resolver{Table: DefaultTable(), Rules: DefaultDeviceRules(), Override: ov}
}

// Resolve reads the override once and resolves against it. The returned
// generation identifies the override state that was used.
func (r *Resolver) Resolve(preset Preset, custom Quality, serial string) (Quality, uint64, error) {
	op, active, gen := r.Override.Snapshot()
	q, err := Resolve(r.Table, r.Rules, preset, active, op, custom, serial)
	return q, gen, err
}

// Effective is the preset that Resolve would look up after override and
// device substitution.
func (r *Resolver) Effective(preset Preset, serial string) Preset {
	if op, active, _ := r.Override.Snapshot(); active {
		preset = op
	}
	if preset == Automatic {
		preset = MatchDevice(r.Rules, serial)
	}
	return preset
}
