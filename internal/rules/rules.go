// Package rules loads a signal.SignalDB from a YAML rules file: a manual,
// hand-authored alternative to parsing a DBC (spec.md §6 "manual data
// entry"). It never reads a DBC file itself; that remains out of scope.
package rules

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/canbusgo/decoder/signal"
)

// ruleSignal mirrors one "signals:" entry in the rules file. Multiplex
// maps a selector value (as a YAML string key, since YAML mapping keys
// decode as strings) to the child signals active for that selector.
type ruleSignal struct {
	Name         string                  `mapstructure:"name"`
	StartBit     int                     `mapstructure:"start_bit"`
	Size         int                     `mapstructure:"size"`
	LittleEndian *bool                   `mapstructure:"little_endian"`
	Signed       bool                    `mapstructure:"signed"`
	Float        bool                    `mapstructure:"float"`
	Factor       *float64                `mapstructure:"factor"`
	Offset       float64                 `mapstructure:"offset"`
	Multiplex    map[string][]ruleSignal `mapstructure:"multiplex"`
}

type ruleFrame struct {
	ID       uint32       `mapstructure:"id"`
	Extended bool         `mapstructure:"extended"`
	Size     int          `mapstructure:"size"`
	Signals  []ruleSignal `mapstructure:"signals"`
}

type ruleFile struct {
	Protocol string      `mapstructure:"protocol"`
	Frames   []ruleFrame `mapstructure:"frames"`
}

// Load reads a YAML rules file at path and builds a signal.SignalDB from
// it. The top-level "protocol" key selects the generic or J1939 decode
// specialisation, the same tag signal.NewDB takes directly.
func Load(path string) (*signal.SignalDB, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var rf ruleFile
	if err := v.Unmarshal(&rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return build(&rf)
}

func build(rf *ruleFile) (*signal.SignalDB, error) {
	db := signal.NewDB(rf.Protocol)
	for _, rframe := range rf.Frames {
		id := signal.CanonicalFrameID(rframe.ID, rframe.Extended)
		frame := signal.NewFrame(id, rframe.Size)
		for _, rsig := range rframe.Signals {
			sig, err := toSignal(rsig, rframe.Size)
			if err != nil {
				return nil, fmt.Errorf("frame 0x%08X: %w", uint32(id), err)
			}
			if err := frame.AddSignal(sig); err != nil {
				return nil, err
			}
		}
		if !db.AddFrame(frame) {
			return nil, fmt.Errorf("duplicate frame id 0x%08X", uint32(id))
		}
	}
	return db, nil
}

// toSignal converts one rules-file entry into a *signal.Signal, recursing
// into multiplex children. frameSize validates the signal's bitfield
// geometry against its enclosing frame.
func toSignal(rs ruleSignal, frameSize int) (*signal.Signal, error) {
	sig := signal.New(rs.Name, rs.StartBit, rs.Size)
	if rs.LittleEndian != nil {
		sig.IsLittleEndian = *rs.LittleEndian
	}
	sig.IsSigned = rs.Signed
	sig.IsFloat = rs.Float
	sig.Offset = rs.Offset
	if rs.Factor != nil {
		sig.Factor = *rs.Factor
	}
	if err := sig.Validate(frameSize); err != nil {
		return nil, err
	}
	for selectorStr, children := range rs.Multiplex {
		var selector uint64
		if _, err := fmt.Sscanf(selectorStr, "%d", &selector); err != nil {
			return nil, fmt.Errorf("signal %q: invalid multiplex selector %q: %w", rs.Name, selectorStr, err)
		}
		for _, rchild := range children {
			child, err := toSignal(rchild, frameSize)
			if err != nil {
				return nil, err
			}
			sig.AddMultiplexedSignal(selector, child)
		}
	}
	return sig, nil
}
