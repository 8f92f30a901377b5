package jbig2

// SymbolDict is the decoded artifact of a symbol dictionary segment: its
// exported symbols, in export order. Symbols are immutable once decoded and
// may be shared with the dictionaries that inherit them.
type SymbolDict struct {
	symbols []*Image
}

// NumSymbols returns the number of exported symbols.
func (sd *SymbolDict) NumSymbols() int { return len(sd.symbols) }

// Symbol returns the exported symbol at index, or nil when out of range.
func (sd *SymbolDict) Symbol(index int) *Image {
	if index < 0 || index >= len(sd.symbols) {
		return nil
	}
	return sd.symbols[index]
}

// Symbols returns the exported symbols.
func (sd *SymbolDict) Symbols() []*Image { return sd.symbols }
