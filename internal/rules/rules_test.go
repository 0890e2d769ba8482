package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canbusgo/decoder/signal"
)

func writeRules(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_GenericFrame(t *testing.T) {
	path := writeRules(t, `
protocol: ""
frames:
  - id: 0x100
    extended: false
    size: 8
    signals:
      - name: RPM
        start_bit: 0
        size: 16
        factor: 0.25
      - name: Temp
        start_bit: 16
        size: 8
        signed: true
        offset: -40
`)
	db, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "", db.Protocol())

	frame, ok := db.Lookup(signal.CanonicalFrameID(0x100, false))
	require.True(t, ok)
	require.Len(t, frame.Signals, 2)

	rpm := frame.Signals[0]
	assert.Equal(t, "RPM", rpm.Name)
	assert.True(t, rpm.IsLittleEndian)
	assert.Equal(t, 0.25, rpm.Factor)

	temp := frame.Signals[1]
	assert.True(t, temp.IsSigned)
	assert.Equal(t, -40.0, temp.Offset)
}

func TestLoad_J1939FrameExtended(t *testing.T) {
	path := writeRules(t, `
protocol: J1939
frames:
  - id: 0x18FEF100
    extended: true
    size: 8
    signals:
      - name: EngineSpeed
        start_bit: 24
        size: 16
        factor: 0.125
`)
	db, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "J1939", db.Protocol())

	frame, ok := db.Lookup(signal.CanonicalFrameID(0x18FEF100, true))
	require.True(t, ok)
	assert.Equal(t, "EngineSpeed", frame.Signals[0].Name)
}

func TestLoad_Multiplexer(t *testing.T) {
	path := writeRules(t, `
frames:
  - id: 0x200
    size: 8
    signals:
      - name: Mode
        start_bit: 0
        size: 8
        multiplex:
          "0":
            - name: ChildA
              start_bit: 8
              size: 8
          "1":
            - name: ChildB
              start_bit: 8
              size: 8
`)
	db, err := Load(path)
	require.NoError(t, err)

	frame, ok := db.Lookup(signal.CanonicalFrameID(0x200, false))
	require.True(t, ok)
	mux := frame.Signals[0]
	require.True(t, mux.IsMultiplexer())
	require.Contains(t, mux.Children, uint64(0))
	require.Contains(t, mux.Children, uint64(1))
	assert.Equal(t, "ChildA", mux.Children[0][0].Name)
	assert.Equal(t, "ChildB", mux.Children[1][0].Name)
}

func TestLoad_DuplicateFrameIsError(t *testing.T) {
	path := writeRules(t, `
frames:
  - id: 0x300
    size: 8
  - id: 0x300
    size: 8
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidGeometryIsError(t *testing.T) {
	path := writeRules(t, `
frames:
  - id: 0x300
    size: 8
    signals:
      - name: TooWide
        start_bit: 60
        size: 16
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
