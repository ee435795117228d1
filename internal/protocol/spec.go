package protocol

import (
	"fmt"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
)

// Stdio is a stdout/stderr redirection target, decoded from the spec's
// stdout/stderr option: discard, cross-redirect to the other stream, or
// append-to-file.
type Stdio struct {
	Discard  bool
	ToStderr bool // only meaningful on Stdout
	ToStdout bool // only meaningful on Stderr
	File     string
}

// Options holds the decoded, enumerated option set of a CommandSpec, as
// described in the data model.
type Options struct {
	Cd      string
	Env     []string
	Kill    string
	Nice    *int
	User    string
	Stdout  Stdio
	Stderr  Stdio
	Before  string
	After   string
	NoFiles *uint64
}

// CommandSpec is the immutable, decoded request, as described in the
// data model: a command plus its transaction id and enumerated options.
type CommandSpec struct {
	Command       string
	TransactionID int64
	Options       Options
}

var recognizedOptions = map[Atom]bool{
	"cd": true, "env": true, "kill": true, "nice": true, "user": true,
	"stdout": true, "stderr": true, "before": true, "after": true,
	"nofiles": true,
	// "mount" is recognized at the wire level but has no behavior (see
	// spec's open questions): it is rejected as BadOption below so any
	// attempt to use it surfaces immediately rather than being silently
	// ignored.
}

// DecodeSpec decodes a frame payload into a CommandSpec. Decoding is
// total: it never returns a partially populated spec on error, matching
// ei_decode's contract of building into scratch state and only
// committing on success.
func DecodeSpec(frame []byte) (*CommandSpec, error) {
	term, err := decodeTerm(frame)
	if err != nil {
		return nil, herrors.BadRequest("DecodeSpec", err)
	}

	outer, ok := term.(Tuple)
	if !ok || len(outer) != 2 {
		return nil, herrors.BadRequest("DecodeSpec", fmt.Errorf("expected {transaction_id, {command, options}}"))
	}

	txID, ok := outer[0].(int64)
	if !ok {
		return nil, herrors.BadRequest("DecodeSpec", fmt.Errorf("transaction_id must be an integer"))
	}

	inner, ok := outer[1].(Tuple)
	if !ok || len(inner) != 2 {
		return nil, herrors.BadRequest("DecodeSpec", fmt.Errorf("expected {command, [option]}"))
	}

	command, ok := inner[0].(string)
	if !ok || command == "" {
		return nil, herrors.BadRequest("DecodeSpec", fmt.Errorf("missing or empty command field"))
	}

	optList, ok := inner[1].([]any)
	if !ok {
		return nil, herrors.BadRequest("DecodeSpec", fmt.Errorf("expected an option list"))
	}

	opts, err := decodeOptions(optList)
	if err != nil {
		return nil, err
	}

	return &CommandSpec{
		Command:       command,
		TransactionID: txID,
		Options:       *opts,
	}, nil
}

func decodeOptions(optList []any) (*Options, error) {
	opts := &Options{}

	for _, raw := range optList {
		pair, ok := raw.(Tuple)
		if !ok || len(pair) != 2 {
			return nil, herrors.BadRequest("decodeOptions", fmt.Errorf("cmd option must be a 2-tuple"))
		}
		key, ok := pair[0].(Atom)
		if !ok {
			return nil, herrors.BadRequest("decodeOptions", fmt.Errorf("cmd option tag must be an atom"))
		}
		if !recognizedOptions[key] {
			return nil, herrors.BadRequest("decodeOptions", fmt.Errorf("badarg: unrecognized option %q", key))
		}

		var err error
		switch key {
		case "cd":
			opts.Cd, err = decodeStringValue(pair[1])
		case "kill":
			opts.Kill, err = decodeStringValue(pair[1])
		case "user":
			opts.User, err = decodeStringValue(pair[1])
		case "before":
			opts.Before, err = decodeStringValue(pair[1])
		case "after":
			opts.After, err = decodeStringValue(pair[1])
		case "nice":
			err = decodeNice(pair[1], opts)
		case "env":
			err = decodeEnv(pair[1], opts)
		case "stdout":
			opts.Stdout, err = decodeStdio(pair[1])
		case "stderr":
			opts.Stderr, err = decodeStdio(pair[1])
		case "nofiles":
			err = decodeNoFiles(pair[1], opts)
		}
		if err != nil {
			return nil, err
		}
	}

	// Rejecting mutual cross-redirection (stdout=stderr, stderr=stdout) is
	// an explicit testable property: it differs from the source this was
	// distilled from, which only rejected the asymmetric case
	// (stdout=stderr without stderr=stdout) -- a narrower check that
	// missed the actual cycle.
	if opts.Stdout.ToStderr && opts.Stderr.ToStdout {
		return nil, herrors.BadRequest("decodeOptions", fmt.Errorf("badarg: circular reference of stdout and stderr"))
	}

	return opts, nil
}

func decodeStringValue(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case Atom:
		return string(s), nil
	default:
		return "", herrors.BadRequest("decodeStringValue", fmt.Errorf("expected a string value"))
	}
}

func decodeNice(v any, opts *Options) error {
	n, ok := v.(int64)
	if !ok {
		return herrors.BadRequest("decodeNice", fmt.Errorf("nice must be an integer"))
	}
	if n < -20 || n > 20 {
		return herrors.BadRequest("decodeNice", fmt.Errorf("nice must be between -20 and 20"))
	}
	val := int(n)
	opts.Nice = &val
	return nil
}

func decodeEnv(v any, opts *Options) error {
	list, ok := v.([]any)
	if !ok {
		return herrors.BadRequest("decodeEnv", fmt.Errorf("env option requires a list"))
	}
	for i, item := range list {
		s, err := decodeStringValue(item)
		if err != nil {
			return herrors.BadRequest("decodeEnv", fmt.Errorf("invalid env argument at %d", i))
		}
		opts.Env = append(opts.Env, s)
	}
	return nil
}

func decodeStdio(v any) (Stdio, error) {
	s, err := decodeStringValue(v)
	if err != nil {
		return Stdio{}, herrors.BadRequest("decodeStdio", fmt.Errorf("atom or string required for stdout/stderr"))
	}
	switch s {
	case "null":
		return Stdio{Discard: true}, nil
	case "stdout":
		return Stdio{ToStdout: true}, nil
	case "stderr":
		return Stdio{ToStderr: true}, nil
	case "":
		return Stdio{}, nil
	default:
		return Stdio{File: s}, nil
	}
}

func decodeNoFiles(v any, opts *Options) error {
	n, ok := v.(int64)
	if !ok || n < 0 {
		return herrors.BadRequest("decodeNoFiles", fmt.Errorf("nofiles must be a non-negative integer"))
	}
	val := uint64(n)
	opts.NoFiles = &val
	return nil
}
