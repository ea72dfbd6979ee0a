package flowsheet

// Stream is a fixed-width numeric vector carried along an edge: a process
// stream (concentrations, flow, temperature, auxiliary state). The meaning of
// each component is a convention between the connected components; the core
// only moves the vectors around.
type Stream []float64

// ZeroStream returns a zero-valued stream of the given width.
func ZeroStream(width int) Stream {
	return make(Stream, width)
}

// Clone returns an independent copy of the stream.
func (s Stream) Clone() Stream {
	if s == nil {
		return nil
	}
	out := make(Stream, len(s))
	copy(out, s)
	return out
}

// CloneValues deep-copies a full edge-value set. Used by the executor to
// snapshot state before a step so a failed step can be rolled back.
func CloneValues(values map[string]Stream) map[string]Stream {
	out := make(map[string]Stream, len(values))
	for id, s := range values {
		out[id] = s.Clone()
	}
	return out
}
