package sim

// InputFlags is the directional state sampled from the input device for one
// frame.
type InputFlags struct {
	Up    bool `msgpack:"u"`
	Down  bool `msgpack:"d"`
	Left  bool `msgpack:"l"`
	Right bool `msgpack:"r"`
	Fire  bool `msgpack:"f"`
}

// Any reports whether any movement flag is held.
func (f InputFlags) Any() bool {
	return f.Up || f.Down || f.Left || f.Right
}

// InputSample is one immutable input record. Seq increases monotonically per
// connection and is never reused; the server echoes back the Seq of the
// sample an authoritative update was computed from.
type InputSample struct {
	Seq   int64
	Input InputFlags
	Dt    float64
}
