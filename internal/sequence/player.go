package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/holoquilt/internal/layout"
	"github.com/coreman2200/holoquilt/internal/tiling"
)

// Hooks are dependency-injected callbacks into the render engine.
type Hooks struct {
	SetOverride   func(p tiling.Preset)
	ClearOverride func()
	SetOrder      func(o layout.Order)
	// SetParam sets a rig parameter such as "size" or "fov".
	SetParam func(name string, v float64)
}

// Validate checks clip durations, presets and orders.
func (prog Program) Validate() error {
	if len(prog.Clips) == 0 {
		return errors.New("program has no clips")
	}
	for i, c := range prog.Clips {
		if c.DurationS <= 0 {
			return fmt.Errorf("clip %d (%s): duration must be positive", i, c.Name)
		}
		if c.Preset != "" {
			if _, err := tiling.ParsePreset(c.Preset); err != nil {
				return fmt.Errorf("clip %d (%s): %w", i, c.Name, err)
			}
		}
		if c.Order != "" {
			if _, err := layout.ParseOrder(c.Order); err != nil {
				return fmt.Errorf("clip %d (%s): %w", i, c.Name, err)
			}
		}
		for name, env := range c.Params {
			if err := env.Validate(); err != nil {
				return fmt.Errorf("clip %d (%s) param %s: %w", i, c.Name, name, err)
			}
		}
	}
	return nil
}

// LoadProgram reads a program from a .json, .yaml or .yml file.
func LoadProgram(path string) (Program, error) {
	var prog Program
	b, err := os.ReadFile(path)
	if err != nil {
		return prog, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(b, &prog)
	default:
		err = yaml.Unmarshal(b, &prog)
	}
	if err != nil {
		return prog, fmt.Errorf("parse %s: %w", path, err)
	}
	return prog, prog.Validate()
}

// TourAll visits every concrete preset for secs seconds each.
func TourAll(secs float64) Program {
	prog := Program{Version: "tour.v1"}
	for _, p := range tiling.Presets() {
		if p == tiling.Automatic || p == tiling.Custom {
			continue
		}
		prog.Clips = append(prog.Clips, Clip{Name: p.String(), Preset: p.String(), DurationS: secs})
	}
	return prog
}

// NewPlayer constructs a Player with provided hooks.
func NewPlayer(h Hooks) *Player {
	return &Player{
		State: Idle,
		hooks: h,
	}
}

// Load replaces the current program. Resets time and state to Idle.
func (p *Player) Load(prog Program) error {
	if err := prog.Validate(); err != nil {
		return err
	}
	p.prog = prog
	p.nowS = 0
	p.idx = 0
	p.State = Idle
	return nil
}

func (p *Player) Program() Program { return p.prog }

// Index is the current clip index.
func (p *Player) Index() int { return p.idx }

// Start moves to Running and applies the first clip.
func (p *Player) Start() {
	if p.State == Running || len(p.prog.Clips) == 0 {
		return
	}
	p.State = Running
	p.applyClip(p.prog.Clips[p.idx])
}

// Pause pauses playback.
func (p *Player) Pause() { p.State = Paused }

// Resume resumes playback.
func (p *Player) Resume() {
	if p.State == Paused {
		p.State = Running
	}
}

// Stop stops, resets to start and clears the override.
func (p *Player) Stop() {
	p.State = Idle
	p.nowS = 0
	p.idx = 0
	if p.hooks.ClearOverride != nil {
		p.hooks.ClearOverride()
	}
}

// Seek jumps to absolute program time t. Clamps into [0, totalDur).
func (p *Player) Seek(t float64) {
	if len(p.prog.Clips) == 0 {
		return
	}
	if t < 0 {
		t = 0
	}
	total := p.totalDuration()
	if total > 0 && t >= total {
		t = math.Nextafter(total, -1)
	}
	acc := 0.0
	idx := 0
	for i, c := range p.prog.Clips {
		if t < acc+c.DurationS {
			idx = i
			break
		}
		acc += c.DurationS
	}
	p.idx = idx
	p.nowS = t
	p.applyClip(p.prog.Clips[p.idx])
}

// Tick advances the sequencer by dt seconds and emits control hooks.
func (p *Player) Tick(dt float64) {
	if p.State != Running || len(p.prog.Clips) == 0 {
		return
	}
	if dt <= 0 {
		return
	}
	p.nowS += dt

	clip, localT := p.currentClipAndLocalT()
	for name, env := range clip.Params {
		if p.hooks.SetParam != nil {
			p.hooks.SetParam(name, env.Eval(localT))
		}
	}
	if localT >= clip.DurationS {
		p.advanceClip()
	}
}

func (p *Player) applyClip(c Clip) {
	log.Debug().Str("clip", c.Name).Str("preset", c.Preset).Msg("sequence clip")
	if c.Preset == "" {
		if p.hooks.ClearOverride != nil {
			p.hooks.ClearOverride()
		}
	} else if pr, err := tiling.ParsePreset(c.Preset); err == nil && p.hooks.SetOverride != nil {
		p.hooks.SetOverride(pr)
	}
	if c.Order != "" {
		if o, err := layout.ParseOrder(c.Order); err == nil && p.hooks.SetOrder != nil {
			p.hooks.SetOrder(o)
		}
	}
}

func (p *Player) currentClipAndLocalT() (Clip, float64) {
	acc := 0.0
	for i := 0; i < p.idx; i++ {
		acc += p.prog.Clips[i].DurationS
	}
	localT := p.nowS - acc
	return p.prog.Clips[p.idx], localT
}

func (p *Player) totalDuration() float64 {
	total := 0.0
	for _, c := range p.prog.Clips {
		total += c.DurationS
	}
	return total
}

func (p *Player) nextIndex() int {
	if len(p.prog.Clips) == 0 {
		return -1
	}
	ni := p.idx + 1
	if ni >= len(p.prog.Clips) {
		if p.prog.Loop {
			return 0
		}
		return -1
	}
	return ni
}

func (p *Player) advanceClip() {
	next := p.nextIndex()
	if next == -1 {
		// End of program
		p.State = Idle
		if p.hooks.ClearOverride != nil {
			p.hooks.ClearOverride()
		}
		return
	}
	if next == 0 {
		p.nowS -= p.totalDuration()
	}
	p.idx = next
	p.applyClip(p.prog.Clips[p.idx])
}

// --- Lightweight synchronization helpers (optional) ---

type SafePlayer struct {
	mu sync.Mutex
	P  *Player
}

func NewSafePlayer(h Hooks) *SafePlayer {
	return &SafePlayer{P: NewPlayer(h)}
}

func (s *SafePlayer) With(f func(p *Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s.P)
}
