package decoder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/canbusgo/decoder/bitfield"
	"github.com/canbusgo/decoder/physical"
	"github.com/canbusgo/decoder/signal"
)

// ErrCommonTimeBase is returned when BatchOptions.CommonTimeBase is set:
// the wide-format output variant is reserved (spec.md §4.6) but not
// implemented by this package.
var ErrCommonTimeBase = errors.New("decoder: common_time_base output is reserved, not implemented")

// BatchInput is the columnar table the batch decoder consumes (spec.md
// §4.6, §6). All populated columns must have the same length as
// TimeStamp; a column left as a nil/short slice is treated as absent and
// reported via ErrMissingColumn (spec.md §8 S6).
type BatchInput struct {
	TimeStamp []int64
	ID        []uint32
	IDE       []bool
	DataBytes [][]byte
}

func (in *BatchInput) validate() error {
	n := len(in.TimeStamp)
	if len(in.ID) != n {
		return fmt.Errorf("%w: ID", ErrMissingColumn)
	}
	if len(in.IDE) != n {
		return fmt.Errorf("%w: IDE", ErrMissingColumn)
	}
	if len(in.DataBytes) != n {
		return fmt.Errorf("%w: DataBytes", ErrMissingColumn)
	}
	return nil
}

// BatchOptions configures BatchDecoder.Decode (spec.md §4.6).
type BatchOptions struct {
	// IgnoreInvalidSignals applies the J1939 invalid-value ceiling.
	// Defaults to true when unset; only meaningful for the J1939 variant.
	IgnoreInvalidSignals *bool
	// ColumnsToDrop names output columns. Decode does not read it, and
	// Table omits only the columns named in its own drop argument.
	ColumnsToDrop map[string]bool
	// CommonTimeBase reserved for the wide-format output; must stay false.
	CommonTimeBase bool
}

func (o BatchOptions) ignoreInvalid() bool {
	if o.IgnoreInvalidSignals == nil {
		return true
	}
	return *o.IgnoreInvalidSignals
}

// BatchRow is one decoded measurement in long format (spec.md §6).
type BatchRow struct {
	TimeStamp           int64
	CanID               uint32
	Signal              string
	RawValue            int64
	PhysicalValue       float64
	PGN                 uint32
	SourceAddress       uint8
	HasPGN              bool
}

// BatchResult is the output of a batch decode: rows sorted by timestamp
// ascending, ties preserving insertion (group processing) order (spec.md
// §5, §8 property 7).
type BatchResult struct {
	Rows []BatchRow
}

// Table renders the result as a column-name -> values map matching
// spec.md §6's batch result schema, omitting the columns named in drop.
func (r *BatchResult) Table(drop map[string]bool) map[string][]any {
	cols := map[string][]any{}
	add := func(name string, v any) {
		if drop != nil && drop[name] {
			return
		}
		cols[name] = append(cols[name], v)
	}
	hasPGNCol := false
	for _, row := range r.Rows {
		if row.HasPGN {
			hasPGNCol = true
			break
		}
	}
	for _, row := range r.Rows {
		add("TimeStamp", row.TimeStamp)
		add("CAN ID", row.CanID)
		add("Signal", row.Signal)
		add("Raw Value", row.RawValue)
		add("Physical Value", row.PhysicalValue)
		if hasPGNCol {
			add("PGN", row.PGN)
			add("Source Address", row.SourceAddress)
		}
	}
	return cols
}

// BatchDecoder decodes many records at once, grouped by frame ID or PGN,
// sharing the scalar bit-extraction kernel with StreamDecoder by invoking
// it with N>=1 rows per call (spec.md §4.6, design note "Columnar vs
// scalar paths").
type BatchDecoder struct {
	engine *engine
}

// NewBatchDecoder constructs a batch decoder using db's protocol to
// select the generic or J1939 specialisation (spec.md §4.7).
func NewBatchDecoder(db *signal.SignalDB) (*BatchDecoder, error) {
	e, err := newEngine(db)
	if err != nil {
		return nil, err
	}
	return &BatchDecoder{engine: e}, nil
}

// group is one set of rows (by original index) sharing a resolved frame.
type group struct {
	res     resolved
	indices []int
}

// Decode decodes the whole input table in bulk (spec.md §4.6). Per-group
// shape mismatches are non-fatal: they are collected as warnings and that
// group is skipped, while the rest of the table continues to decode.
func (b *BatchDecoder) Decode(in *BatchInput, opts BatchOptions) (*BatchResult, []Warning, error) {
	if opts.CommonTimeBase {
		return nil, nil, ErrCommonTimeBase
	}
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	groups := b.groupRows(in)

	result := &BatchResult{}
	var warnings []Warning
	for _, g := range groups {
		rows, warns, err := b.decodeGroup(in, g, opts)
		if err != nil {
			return nil, nil, err
		}
		result.Rows = append(result.Rows, rows...)
		warnings = append(warnings, warns...)
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		return result.Rows[i].TimeStamp < result.Rows[j].TimeStamp
	})
	return result, warnings, nil
}

// groupRows resolves each row's frame and buckets row indices by the
// resolved frame identity (its canonical/PGN key), matching spec.md §4.6
// steps 1-2 (generic) / 1-3 (J1939).
func (b *BatchDecoder) groupRows(in *BatchInput) []group {
	byKey := map[signal.FrameID]*group{}
	var order []signal.FrameID
	for i := range in.TimeStamp {
		res, ok := b.engine.resolve(in.ID[i], in.IDE[i])
		if !ok {
			continue
		}
		key := signal.FrameID(res.canID)
		if res.hasPGN {
			key = signal.FrameID(res.pgn)
		}
		g, exists := byKey[key]
		if !exists {
			g = &group{res: res}
			byKey[key] = g
			order = append(order, key)
		}
		g.indices = append(g.indices, i)
	}
	groups := make([]group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *byKey[k])
	}
	return groups
}

// decodeGroup decodes every top-level (and recursively, multiplexed)
// signal of g.res.frame over the rows in g.indices. An unsupported signal
// geometry (signal.ErrUnsupportedSignal) aborts the whole call rather than
// being folded into the warning list, matching the streaming decoder.
func (b *BatchDecoder) decodeGroup(in *BatchInput, g group, opts BatchOptions) ([]BatchRow, []Warning, error) {
	data := make([][]byte, len(g.indices))
	for i, idx := range g.indices {
		data[i] = in.DataBytes[idx]
	}
	if shapeErr := checkShape(g.res.frame, data); shapeErr != "" {
		return nil, []Warning{{Kind: DataSizeMismatch, FrameID: g.res.canID, Detail: shapeErr}}, nil
	}

	var rows []BatchRow
	var warnings []Warning
	for _, sig := range g.res.frame.Signals {
		r, w, err := b.decodeSignal(sig, data, g.indices, in, g.res, opts)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, r...)
		warnings = append(warnings, w...)
	}
	return rows, warnings, nil
}

// checkShape reports a non-empty reason when data isn't uniformly
// frame.Size bytes wide (spec.md §4.6 "Failure").
func checkShape(frame *signal.Frame, data [][]byte) string {
	for _, row := range data {
		if len(row) != frame.Size {
			return fmt.Sprintf("expected %d-byte payloads for frame 0x%08X, got %d", frame.Size, uint32(frame.ID), len(row))
		}
	}
	return ""
}

// decodeSignal decodes sig over data (recursing into multiplexed
// children by partitioning rows per unique selector value), per spec.md
// §4.6 steps 3-4.
func (b *BatchDecoder) decodeSignal(sig *signal.Signal, data [][]byte, indices []int, in *BatchInput, res resolved, opts BatchOptions) ([]BatchRow, []Warning, error) {
	if sig.IsMultiplexer() {
		selectors := bitfield.Extract(sig, data)
		order, partitions := partitionBySelector(selectors)
		var rows []BatchRow
		var warnings []Warning
		for _, selector := range order {
			localIdx := partitions[selector]
			children, ok := sig.Children[selector]
			if !ok {
				continue
			}
			subData := subset(data, localIdx)
			subIndices := subsetInt(indices, localIdx)
			for _, child := range children {
				r, w, err := b.decodeSignal(child, subData, subIndices, in, res, opts)
				if err != nil {
					return nil, nil, err
				}
				rows = append(rows, r...)
				warnings = append(warnings, w...)
			}
		}
		return rows, warnings, nil
	}

	raw, phys, err := physical.Decode(sig, data)
	if err != nil {
		if errors.Is(err, signal.ErrUnsupportedSignal) {
			return nil, nil, err
		}
		return nil, []Warning{{Kind: DataSizeMismatch, FrameID: res.canID, Detail: err.Error()}}, nil
	}
	rows := make([]BatchRow, 0, len(raw))
	ignoreInvalid := opts.ignoreInvalid()
	for i, rv := range raw {
		if !b.engine.acceptable(sig, rv.Raw, ignoreInvalid) {
			continue
		}
		idx := indices[i]
		row := BatchRow{
			TimeStamp:     in.TimeStamp[idx],
			CanID:         res.canID,
			Signal:        sig.Name,
			RawValue:      rv.Int64(),
			PhysicalValue: phys[i],
		}
		if res.hasPGN {
			row.PGN = res.pgn
			row.SourceAddress = res.sourceAddress
			row.HasPGN = true
		}
		rows = append(rows, row)
	}
	return rows, nil, nil
}

// partitionBySelector groups the local row indices [0,len(selectors)) by
// their decoded selector value. The returned slice lists the selector
// values in first-seen order.
func partitionBySelector(selectors []uint64) ([]uint64, map[uint64][]int) {
	out := map[uint64][]int{}
	var order []uint64
	for i, s := range selectors {
		if _, ok := out[s]; !ok {
			order = append(order, s)
		}
		out[s] = append(out[s], i)
	}
	return order, out
}

func subset(data [][]byte, idx []int) [][]byte {
	out := make([][]byte, len(idx))
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

func subsetInt(indices []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = indices[j]
	}
	return out
}
