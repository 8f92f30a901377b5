package jbig2

import "fmt"

// validateGraph checks the segment references of d once all headers are
// read (T.88 7.3):
//
//   - segment numbers increase and referents precede their referrers, except
//     that embedded streams may number segments in any order;
//   - no segment is referred to after its retention ended;
//   - each segment type refers to the number and types of segments it
//     consumes;
//   - page associations match the segment type and its referents.
//
// For Power JBIG2 output the retention and referent page association rules
// are relaxed; the violations are kept in d.tolerated.
func validateGraph(d *Document) error {
	embedded := d.Organization == OrganizationEmbedded
	released := make(map[uint32]bool)
	for i, seg := range d.segments {
		if seg.Type() == SegmentEndOfFile && i != len(d.segments)-1 {
			return errorf(ErrSegmentGraphInvalid, "%v is not the last segment", seg)
		}
		if !embedded && i > 0 && seg.Number <= d.segments[i-1].Number {
			return errorf(ErrSegmentGraphInvalid, "%v follows segment %d", seg, d.segments[i-1].Number)
		}

		targets := make([]*Segment, len(seg.Refs))
		for j, ref := range seg.Refs {
			idx, ok := d.byNumber[ref.Number]
			if !ok {
				return errorf(ErrSegmentGraphInvalid, "%v refers to missing segment %d", seg, ref.Number)
			}
			if idx >= i || (!embedded && ref.Number >= seg.Number) {
				return errorf(ErrSegmentGraphInvalid, "%v refers to later segment %d", seg, ref.Number)
			}
			target := d.segments[idx]
			targets[j] = target
			if released[ref.Number] {
				if err := d.tolerate("%v refers to released segment %d", seg, ref.Number); err != nil {
					return err
				}
			}
			if target.PageAssociation != 0 && target.PageAssociation != seg.PageAssociation {
				if err := d.tolerate("%v on page %d refers to %v on page %d", seg, seg.PageAssociation, target, target.PageAssociation); err != nil {
					return err
				}
			}
		}

		if err := checkReferences(seg, targets); err != nil {
			return err
		}
		if err := checkPageAssociation(seg); err != nil {
			return err
		}

		for _, ref := range seg.Refs {
			if !ref.Retain {
				released[ref.Number] = true
			}
		}
		if !seg.Retain {
			released[seg.Number] = true
		}
	}
	return nil
}

// tolerate records a violation accepted for Power JBIG2 output, or returns it.
func (d *Document) tolerate(format string, args ...any) error {
	err := errorf(ErrSegmentGraphInvalid, format, args...)
	if !d.compat {
		return err
	}
	d.tolerated = append(d.tolerated, err)
	return nil
}

// checkReferences applies the per-type rules on referred-to segments.
func checkReferences(seg *Segment, targets []*Segment) error {
	typ := seg.Type()
	invalid := func(format string, args ...any) error {
		return errorf(ErrSegmentGraphInvalid, "%v: %s", seg, fmt.Sprintf(format, args...))
	}
	switch {
	case typ == SegmentSymbolDict || typ.isTextRegion():
		maxTables := 4
		if typ.isTextRegion() {
			maxTables = 8
		}
		tables := 0
		for _, target := range targets {
			switch target.Type() {
			case SegmentTables:
				tables++
			case SegmentSymbolDict:
			default:
				return invalid("refers to %v", target)
			}
		}
		if tables > maxTables {
			return invalid("refers to %d tables", tables)
		}
	case typ.isHalftoneRegion():
		if len(targets) != 1 || targets[0].Type() != SegmentPatternDict {
			return invalid("must refer to one pattern dictionary")
		}
	case typ.isRefinementRegion():
		if len(targets) > 1 {
			return invalid("refers to %d regions", len(targets))
		}
		if len(targets) == 1 && !(targets[0].Type().isRegion() && targets[0].Type().isIntermediate()) {
			return invalid("refers to %v", targets[0])
		}
	case typ == SegmentPatternDict, typ.isGenericRegion(), typ == SegmentPageInfo,
		typ == SegmentEndOfPage, typ == SegmentEndOfStripe, typ == SegmentEndOfFile, typ == SegmentTables:
		if len(targets) != 0 {
			return invalid("refers to %d segments", len(targets))
		}
	}
	return nil
}

func checkPageAssociation(seg *Segment) error {
	typ := seg.Type()
	switch {
	case typ.isRegion(), typ == SegmentPageInfo, typ == SegmentEndOfPage, typ == SegmentEndOfStripe:
		if seg.PageAssociation == 0 {
			return errorf(ErrSegmentGraphInvalid, "%v has no page association", seg)
		}
	case typ == SegmentEndOfFile:
		if seg.PageAssociation != 0 {
			return errorf(ErrSegmentGraphInvalid, "%v is associated with page %d", seg, seg.PageAssociation)
		}
	}
	return nil
}
