package honeycomb

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/honeycomb-run/honeycomb/internal/config"
	"github.com/honeycomb-run/honeycomb/internal/herrors"
	"github.com/honeycomb-run/honeycomb/internal/protocol"
)

func testApp() *App {
	return New(&config.Config{
		ConfinementRoot: "/nonexistent-root-for-tests",
		ConfinementMode: 0o711,
		DefaultNoFiles:  1024,
	})
}

func TestHandleFrameReturnsBadRequestForMalformedFrame(t *testing.T) {
	a := testApp()
	frame := []byte{0xFF, 0xFF, 0xFF}

	_, decodeErr := protocol.DecodeSpec(frame)
	require.Error(t, decodeErr)

	got := a.handleFrame(frame)
	want := protocol.EncodeError(herrors.KindOf(decodeErr).String(), decodeErr.Error())
	require.Equal(t, want, got)
}

// minimalRequestFrame builds {1, {"/bin/true", []}} by hand using the
// same tag values internal/protocol/term.go decodes, since the decoder
// under test intentionally exposes no request-side encoder of its own.
func minimalRequestFrame(command string) []byte {
	var buf []byte
	buf = append(buf, 131)      // version
	buf = append(buf, 104, 2)   // small tuple, arity 2
	buf = append(buf, 97, 1)    // small integer: transaction id 1
	buf = append(buf, 104, 2)   // small tuple, arity 2
	buf = append(buf, 109)      // binary (command string)
	lenBuf := make([]byte, 4)
	bePutUint32(lenBuf, uint32(len(command)))
	buf = append(buf, lenBuf...)
	buf = append(buf, command...)
	buf = append(buf, 106) // nil: empty option list
	return buf
}

func bePutUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func TestHandleFrameSurfacesSandboxBuildFailure(t *testing.T) {
	a := testApp()
	frame := minimalRequestFrame("/bin/true")

	spec, decodeErr := protocol.DecodeSpec(frame)
	require.NoError(t, decodeErr)
	require.Equal(t, "/bin/true", spec.Command)

	got := a.handleFrame(frame)
	require.NotEmpty(t, got)
	// The confinement root does not exist and cannot be created as an
	// unprivileged test process, so Build must fail rather than Launch
	// ever running; either is reported as a structured {error, ...}.
	// Compare through the leading atom: version byte, tuple header and
	// the "ok" atom are the first 7 bytes of EncodeOK's output.
	require.NotEqual(t, protocol.EncodeOK(0)[:7], got[:7])
}

// readWriter adapts two independent buffers into a single io.ReadWriter
// for HandleConn, the way a real two-fd connection would look from the
// codec's point of view.
type readWriter struct {
	r io.Reader
	w io.Writer
}

func (rw *readWriter) Read(p []byte) (int, error)  { return rw.r.Read(p) }
func (rw *readWriter) Write(p []byte) (int, error) { return rw.w.Write(p) }

func TestHandleConnWritesErrorResponseForMalformedFrame(t *testing.T) {
	a := testApp()

	var in bytes.Buffer
	in.Write([]byte{0x00, 0x03})
	in.Write([]byte{0xFF, 0xFF, 0xFF})

	var out bytes.Buffer
	rw := &readWriter{r: &in, w: &out}

	require.NoError(t, a.HandleConn(rw))
	require.NotEmpty(t, out.Bytes())
}

func TestServeReturnsNilOnImmediateEOF(t *testing.T) {
	a := testApp()
	var out bytes.Buffer

	err := a.Serve(bytes.NewReader(nil), &out)
	require.NoError(t, err)
	require.Empty(t, out.Bytes())
}

func TestResponseForUsesErrorKindString(t *testing.T) {
	err := herrors.NotFound("op", io.ErrUnexpectedEOF)
	got := responseFor(err)
	require.Equal(t, protocol.EncodeError(herrors.KindNotFound.String(), err.Error()), got)
}
