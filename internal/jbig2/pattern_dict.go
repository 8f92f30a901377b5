package jbig2

// PatternDict is the decoded artifact of a pattern dictionary segment: GrayMax+1
// patterns of HDPW x HDPH pixels, each a view of one collective bitmap.
type PatternDict struct {
	collective *Image
	Patterns   []*Image
}

// NumPatterns returns the number of patterns in the dictionary.
func (pd *PatternDict) NumPatterns() uint32 { return uint32(len(pd.Patterns)) }

// Pattern returns the pattern for a gray value, or nil when out of range.
func (pd *PatternDict) Pattern(gray uint32) *Image {
	if int64(gray) >= int64(len(pd.Patterns)) {
		return nil
	}
	return pd.Patterns[gray]
}

// newPatternDict slices a collective bitmap into patterns of width w.
func newPatternDict(collective *Image, count uint32, w, h int32) *PatternDict {
	pd := &PatternDict{collective: collective, Patterns: make([]*Image, count)}
	for gray := range pd.Patterns {
		pd.Patterns[gray] = collective.View(int32(gray)*w, 0, w, h)
	}
	return pd
}
