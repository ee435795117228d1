package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeAny is a generic test-only term encoder (the production encoder
// only needs to build responses; requests are built here to exercise
// DecodeSpec against every shape it must accept or reject).
func encodeAny(buf []byte, v any) []byte {
	switch t := v.(type) {
	case int64:
		if t >= 0 && t < 256 {
			return append(buf, tagSmallInteger, byte(t))
		}
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, uint32(int32(t)))
		return append(append(buf, tagInteger), raw...)
	case int:
		return encodeAny(buf, int64(t))
	case Atom:
		buf = append(buf, tagSmallAtomUTF8, byte(len(t)))
		return append(buf, t...)
	case string:
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, uint32(len(t)))
		buf = append(append(buf, tagBinary), raw...)
		return append(buf, t...)
	case Tuple:
		buf = append(buf, tagSmallTuple, byte(len(t)))
		for _, e := range t {
			buf = encodeAny(buf, e)
		}
		return buf
	case []any:
		raw := make([]byte, 4)
		binary.BigEndian.PutUint32(raw, uint32(len(t)))
		buf = append(append(buf, tagList), raw...)
		for _, e := range t {
			buf = encodeAny(buf, e)
		}
		return append(buf, tagNil)
	default:
		panic("encodeAny: unsupported type")
	}
}

func frameFor(v any) []byte {
	return encodeAny([]byte{tagVersion}, v)
}

func TestDecodeSpecMinimal(t *testing.T) {
	frame := frameFor(Tuple{int64(1), Tuple{"/bin/true", []any{}}})
	spec, err := DecodeSpec(frame)
	require.NoError(t, err)
	require.Equal(t, "/bin/true", spec.Command)
	require.Equal(t, int64(1), spec.TransactionID)
}

func TestDecodeSpecMissingCommand(t *testing.T) {
	frame := frameFor(Tuple{int64(1), Tuple{"", []any{}}})
	_, err := DecodeSpec(frame)
	require.Error(t, err)
}

func TestDecodeSpecUnknownOption(t *testing.T) {
	frame := frameFor(Tuple{int64(2), Tuple{"ls", []any{
		Tuple{Atom("bogus"), "x"},
	}}})
	_, err := DecodeSpec(frame)
	require.Error(t, err)
}

func TestDecodeSpecMountReserved(t *testing.T) {
	frame := frameFor(Tuple{int64(2), Tuple{"ls", []any{
		Tuple{Atom("mount"), "/data"},
	}}})
	_, err := DecodeSpec(frame)
	require.Error(t, err)
}

func TestDecodeSpecNiceOutOfRange(t *testing.T) {
	frame := frameFor(Tuple{int64(4), Tuple{"ls", []any{
		Tuple{Atom("nice"), int64(25)},
	}}})
	_, err := DecodeSpec(frame)
	require.Error(t, err)
}

func TestDecodeSpecNiceInRange(t *testing.T) {
	frame := frameFor(Tuple{int64(4), Tuple{"ls", []any{
		Tuple{Atom("nice"), int64(-5)},
	}}})
	spec, err := DecodeSpec(frame)
	require.NoError(t, err)
	require.NotNil(t, spec.Options.Nice)
	require.Equal(t, -5, *spec.Options.Nice)
}

func TestDecodeSpecEnvAppendsInOrder(t *testing.T) {
	frame := frameFor(Tuple{int64(1), Tuple{"ls", []any{
		Tuple{Atom("env"), []any{"FOO=bar", "BAZ=qux"}},
	}}})
	spec, err := DecodeSpec(frame)
	require.NoError(t, err)
	require.Equal(t, []string{"FOO=bar", "BAZ=qux"}, spec.Options.Env)
}

func TestDecodeSpecStdioCycleRejected(t *testing.T) {
	frame := frameFor(Tuple{int64(5), Tuple{"/bin/ls", []any{
		Tuple{Atom("stdout"), Atom("stderr")},
		Tuple{Atom("stderr"), Atom("stdout")},
	}}})
	_, err := DecodeSpec(frame)
	require.Error(t, err)
}

func TestDecodeSpecStdioFileTarget(t *testing.T) {
	frame := frameFor(Tuple{int64(5), Tuple{"/bin/ls", []any{
		Tuple{Atom("stdout"), "/tmp/out.log"},
		Tuple{Atom("stderr"), Atom("stdout")},
	}}})
	spec, err := DecodeSpec(frame)
	require.NoError(t, err)
	require.Equal(t, "/tmp/out.log", spec.Options.Stdout.File)
	require.True(t, spec.Options.Stderr.ToStdout)
}

func TestDecodeSpecIsTotalOnError(t *testing.T) {
	frame := frameFor(Tuple{int64(3), Tuple{"sleep 100", []any{
		Tuple{Atom("kill"), "kill -9 $$"},
		Tuple{Atom("nice"), int64(999)},
	}}})
	spec, err := DecodeSpec(frame)
	require.Error(t, err)
	require.Nil(t, spec)
}
