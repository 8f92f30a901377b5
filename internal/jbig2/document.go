package jbig2

import "math"

// Document is the segment arena of a JBIG2 file or of an embedded stream.
// Segments are kept in stream order and indexed by number.
type Document struct {
	Header       *FileHeader
	Organization Organization

	segments []*Segment
	byNumber map[uint32]int
	pages    []uint32
	comments []Comment
	// compat enables the allowance for Power JBIG2 output; tolerated holds
	// the violations it accepted.
	compat    bool
	tolerated []error
}

// ParseDocument parses a JBIG2 file: the file header, then every segment
// header and data part. The segment graph is validated before it returns.
func ParseDocument(data []byte) (*Document, error) {
	header, rest, err := parseFileHeader(data)
	if err != nil {
		return nil, err
	}
	doc := newDocument(header.Organization)
	doc.Header = header
	if err := doc.readSegments(rest); err != nil {
		return nil, err
	}
	return doc, doc.finish()
}

// ParseEmbedded parses headerless segment streams, as embedded in PDF: the
// optional globals stream followed by the page stream. Both share one
// segment arena.
func ParseEmbedded(chunks ...[]byte) (*Document, error) {
	doc := newDocument(OrganizationEmbedded)
	for _, chunk := range chunks {
		if err := doc.readSegments(chunk); err != nil {
			return nil, err
		}
	}
	return doc, doc.finish()
}

func newDocument(org Organization) *Document {
	return &Document{Organization: org, byNumber: make(map[uint32]int)}
}

// readSegments appends the segments of data. Random-access streams list
// every header, up to the end of file segment, before the data parts.
func (d *Document) readSegments(data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return errorf(ErrValueOutOfRange, "stream of %d bytes", len(data))
	}
	stream := NewBitStream(data)
	var pending []*Segment
	for stream.BytesLeft() > 0 {
		seg, err := parseSegmentHeader(stream)
		if err != nil {
			return err
		}
		if d.Organization == OrganizationRandomAccess {
			pending = append(pending, seg)
		} else if err := d.readData(stream, seg); err != nil {
			return err
		}
		if seg.Type() == SegmentEndOfFile {
			break
		}
	}
	for _, seg := range pending {
		if err := d.readData(stream, seg); err != nil {
			return err
		}
	}
	return nil
}

// readData slices the data part of seg off the stream and adds seg to the
// arena.
func (d *Document) readData(stream *BitStream, seg *Segment) error {
	length := seg.DataLength
	if length == unknownDataLength {
		var err error
		if length, err = scanGenericRegionLength(stream.Pointer()); err != nil {
			return err
		}
	}
	if length > stream.BytesLeft() {
		return errorf(ErrDataTruncated, "%v needs %d bytes, %d left", seg, length, stream.BytesLeft())
	}
	seg.Data = stream.Pointer()[:length:length]
	stream.AddOffset(length)
	return d.add(seg)
}

func (d *Document) add(seg *Segment) error {
	if _, ok := d.byNumber[seg.Number]; ok {
		return errorf(ErrSegmentGraphInvalid, "duplicate segment number %d", seg.Number)
	}
	d.byNumber[seg.Number] = len(d.segments)
	d.segments = append(d.segments, seg)
	return nil
}

// finish collects pages and comments and validates the segment graph.
func (d *Document) finish() error {
	for _, seg := range d.segments {
		switch seg.Type() {
		case SegmentPageInfo:
			d.pages = append(d.pages, seg.PageAssociation)
		case SegmentExtension:
			// Malformed comments fail when the segment is dispatched.
			if comments, err := parseExtension(seg.Data); err == nil {
				d.comments = append(d.comments, comments...)
			}
		}
	}
	d.compat = hasPowerJBIG2Signature(d.comments)
	return validateGraph(d)
}

// Segments returns the segments in stream order.
func (d *Document) Segments() []*Segment { return d.segments }

// Segment returns the segment numbered number, or nil.
func (d *Document) Segment(number uint32) *Segment {
	if i, ok := d.byNumber[number]; ok {
		return d.segments[i]
	}
	return nil
}

// PageNumbers returns the page association of every page information
// segment, in stream order.
func (d *Document) PageNumbers() []uint32 { return d.pages }

// Comments returns the comments of all comment extension segments.
func (d *Document) Comments() []Comment { return d.comments }

// Tolerated returns the format violations accepted for Power JBIG2 output.
func (d *Document) Tolerated() []error { return d.tolerated }
