// Package elfdeps implements the ElfDepWalker component: extracting the
// needed-library names and runpaths referenced by an ELF binary's
// .dynstr section. Grounded on honeycomb.cpp's dynamic_loads and
// names_library, using debug/elf the way the teacher's
// internal/pkg/util/paths.Resolve does -- there is no third-party ELF
// section reader in the example pack, so the standard library is the
// idiomatic choice here.
package elfdeps

import (
	"bytes"
	"debug/elf"
	"fmt"
	"regexp"

	"github.com/honeycomb-run/honeycomb/internal/herrors"
)

// defaultSearchPaths seeds the returned search path set unconditionally,
// matching honeycomb.cpp's dynamic_loads which always inserts these
// three before scanning .dynstr.
var defaultSearchPaths = []string{"/lib", "/usr/lib", "/usr/local/lib"}

var libraryPattern = regexp.MustCompile(`^lib.+\.so[.0-9]*$`)

// Closure is the result of walking one binary's .dynstr section: the
// needed-library names it references, and the set of search paths
// (runpaths plus the three defaults) to look for them in.
type Closure struct {
	Libraries   []string
	SearchPaths []string
}

// Walk opens path read-only, locates its .dynstr section and classifies
// every NUL-terminated string it contains as a library name, a search
// path, or neither. It performs no copies and makes no assumption about
// where the binary's dependencies physically live -- that is FsStager's
// job.
func Walk(path string) (*Closure, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, herrors.NotElf("Walk", err)
	}
	defer f.Close()

	section := f.Section(".dynstr")
	if section == nil {
		// A statically linked binary has no .dynstr; it has no
		// dependencies to stage.
		return &Closure{SearchPaths: append([]string(nil), defaultSearchPaths...)}, nil
	}

	data, err := section.Data()
	if err != nil {
		return nil, herrors.NotElf("Walk", fmt.Errorf("reading .dynstr: %w", err))
	}

	return classify(data), nil
}

func classify(data []byte) *Closure {
	c := &Closure{SearchPaths: append([]string(nil), defaultSearchPaths...)}
	seenLib := map[string]bool{}
	seenPath := map[string]bool{}
	for _, p := range c.SearchPaths {
		seenPath[p] = true
	}

	// .dynstr's first byte is always the empty string required by the
	// ELF spec; honeycomb.cpp starts its scan at offset 1 for the same
	// reason.
	if len(data) > 0 {
		data = data[1:]
	}

	for _, raw := range bytes.Split(data, []byte{0}) {
		if len(raw) == 0 {
			continue
		}
		s := string(raw)
		switch {
		case libraryPattern.MatchString(s):
			if !seenLib[s] {
				seenLib[s] = true
				c.Libraries = append(c.Libraries, s)
			}
		case s[0] == '/':
			if !seenPath[s] {
				seenPath[s] = true
				c.SearchPaths = append(c.SearchPaths, s)
			}
		}
	}

	return c
}
