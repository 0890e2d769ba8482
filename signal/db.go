package signal

// SignalDB is a read-after-populated database of frame/signal
// definitions, keyed by compound frame ID (spec.md §3).
type SignalDB struct {
	protocol string
	Frames   map[FrameID]*Frame
}

// NewDB creates an empty database tagged with protocol. An empty protocol
// string selects the generic decoder; "J1939" selects the J1939
// specialisation (spec.md §4.7).
func NewDB(protocol string) *SignalDB {
	return &SignalDB{protocol: protocol, Frames: make(map[FrameID]*Frame)}
}

// Protocol returns the database's protocol tag.
func (db *SignalDB) Protocol() string { return db.protocol }

// AddFrame inserts frame, keyed by its ID. Insertion is idempotent: a
// second call with an ID already present is a no-op that returns false
// (spec.md §3, §8 property 6).
func (db *SignalDB) AddFrame(frame *Frame) bool {
	if _, exists := db.Frames[frame.ID]; exists {
		return false
	}
	db.Frames[frame.ID] = frame
	return true
}

// Lookup returns the frame registered under id, if any.
func (db *SignalDB) Lookup(id FrameID) (*Frame, bool) {
	f, ok := db.Frames[id]
	return f, ok
}

// Signals enumerates the names of every signal in the database, in
// pre-order over each frame's signal tree (spec.md §4.1).
func (db *SignalDB) Signals() []string {
	var result []string
	var walk func(s *Signal)
	walk = func(s *Signal) {
		result = append(result, s.Name)
		if !s.IsMultiplexer() {
			return
		}
		for _, group := range s.Children {
			for _, child := range group {
				walk(child)
			}
		}
	}
	for _, frame := range db.Frames {
		for _, s := range frame.Signals {
			walk(s)
		}
	}
	return result
}
