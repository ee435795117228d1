package protocol

import "encoding/binary"

// encoder builds a single term, mirroring the subset of tags term.go
// decodes. Responses are small and shallow ({ok, Pid} or {error, Atom}),
// so encoding only needs integers, atoms, strings and small tuples.
type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: []byte{tagVersion}}
}

func (e *encoder) bytes() []byte { return e.buf }

func (e *encoder) putInt(n int64) {
	if n >= 0 && n < 256 {
		e.buf = append(e.buf, tagSmallInteger, byte(n))
		return
	}
	e.buf = append(e.buf, tagInteger)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(int32(n)))
	e.buf = append(e.buf, raw[:]...)
}

func (e *encoder) putAtom(a Atom) {
	e.buf = append(e.buf, tagSmallAtomUTF8, byte(len(a)))
	e.buf = append(e.buf, a...)
}

func (e *encoder) putString(s string) {
	e.buf = append(e.buf, tagBinary)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(len(s)))
	e.buf = append(e.buf, raw[:]...)
	e.buf = append(e.buf, s...)
}

func (e *encoder) startTuple(n int) {
	if n < 256 {
		e.buf = append(e.buf, tagSmallTuple, byte(n))
		return
	}
	e.buf = append(e.buf, tagLargeTuple)
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], uint32(n))
	e.buf = append(e.buf, raw[:]...)
}

// EncodeOK encodes the {ok, Pid} response sent once a command has been
// launched successfully.
func EncodeOK(pid int) []byte {
	e := newEncoder()
	e.startTuple(2)
	e.putAtom("ok")
	e.putInt(int64(pid))
	return e.bytes()
}

// EncodeError encodes the {error, Reason} response, where Reason is one
// of the atoms from the error handling design (badarg, enoent, not_elf,
// ...) optionally followed by descriptive text captured from a hook's
// stderr.
func EncodeError(reason string, detail string) []byte {
	e := newEncoder()
	if detail == "" {
		e.startTuple(2)
		e.putAtom("error")
		e.putAtom(Atom(reason))
		return e.bytes()
	}
	e.startTuple(3)
	e.putAtom("error")
	e.putAtom(Atom(reason))
	e.putString(detail)
	return e.bytes()
}
