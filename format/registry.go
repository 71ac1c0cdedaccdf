package format

import (
	"fmt"
	"path/filepath"
	"strings"
)

var registered []Parser

// Register adds p to the registry, keyed by the extensions it claims.
// Format packages call this from an init func, the same way
// adapter.RegisterAdapter is called from each concrete adapter
// package's init func.
func Register(p Parser) {
	registered = append(registered, p)
}

// ByName returns the registered parser with the given Name, or nil if
// none matches.
func ByName(name string) Parser {
	for _, p := range registered {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// DetectByExtension returns the registered parser claiming filename's
// extension, or nil if none matches. The extension check is
// case-insensitive, following hfe.DetectImageFormat's convention.
func DetectByExtension(filename string) Parser {
	ext := filepath.Ext(filename)
	if ext == "" {
		return nil
	}
	ext = strings.ToLower(ext[1:])

	for _, p := range registered {
		for _, e := range p.Extensions() {
			if e == ext {
				return p
			}
		}
	}
	return nil
}

// Registered returns every registered parser's Name, for a CLI help
// listing.
func Registered() []string {
	names := make([]string, len(registered))
	for i, p := range registered {
		names[i] = p.Name()
	}
	return names
}

// ErrUnknownFormat reports that no registered parser claims a given
// file's extension.
var ErrUnknownFormat = fmt.Errorf("format: no registered parser for this file")
