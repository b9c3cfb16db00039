package sequence

// Keyframe represents a value at time T (seconds) with an easing function
// that applies to the segment starting at this keyframe.
type Keyframe struct {
	T    float64 `json:"t" yaml:"t"`
	V    float64 `json:"v" yaml:"v"`
	Ease string  `json:"ease,omitempty" yaml:"ease,omitempty"` // "linear","smooth","cubic"
}

// Envelope is a sorted list of keyframes; Eval(t) interpolates a value.
type Envelope struct {
	Keys []Keyframe `json:"keys" yaml:"keys"`
}

// Clip is one stop of a preset tour. Preset names the tiling preset forced
// on every target for the clip; an empty Preset clears the override.
type Clip struct {
	Name      string              `json:"name" yaml:"name"`
	Preset    string              `json:"preset,omitempty" yaml:"preset,omitempty"`
	Order     string              `json:"order,omitempty" yaml:"order,omitempty"`
	DurationS float64             `json:"durationS" yaml:"duration_s"`
	Params    map[string]Envelope `json:"params,omitempty" yaml:"params,omitempty"` // rig params over time
}

// Program is a full sequence of clips.
type Program struct {
	Version string `json:"version" yaml:"version"` // e.g., "tour.v1"
	Loop    bool   `json:"loop,omitempty" yaml:"loop,omitempty"`
	Clips   []Clip `json:"clips" yaml:"clips"`
}

// PlayerState enumerates sequencer states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
	Paused  PlayerState = "paused"
)

// Player owns the current Program timeline and uses Hooks to drive the engine.
type Player struct {
	State PlayerState

	prog Program
	nowS float64 // position within program
	idx  int     // current clip index

	hooks Hooks
}
