package jbig2

import "log/slog"

// DecoderOptions configures JBIG2 decoding behavior.
type DecoderOptions struct {
	// GlobalData holds the segments shared by the pages of an embedded
	// stream, such as the JBIG2Globals stream of a PDF image.
	GlobalData []byte
	// SrcData contains the JBIG2 file or embedded page stream to decode.
	SrcData []byte
	// Embedded marks SrcData as a headerless embedded stream. A stream
	// without the file signature, or one given with GlobalData, is always
	// treated as embedded.
	Embedded bool
	// Logger receives decode diagnostics. nil means slog.Default().
	Logger *slog.Logger
}

// Decoder decodes the pages of one JBIG2 document.
type Decoder struct {
	doc    *Document
	logger *slog.Logger
}

// NewDecoder parses and validates the segments of the document described by
// opts. Pages are decoded on demand by DecodePage.
func NewDecoder(opts DecoderOptions) (*Decoder, error) {
	if len(opts.SrcData) == 0 {
		return nil, errorf(ErrDataTruncated, "empty source data")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var doc *Document
	var err error
	if opts.Embedded || opts.GlobalData != nil || !HasFileSignature(opts.SrcData) {
		doc, err = ParseEmbedded(opts.GlobalData, opts.SrcData)
	} else {
		doc, err = ParseDocument(opts.SrcData)
	}
	if err != nil {
		return nil, err
	}
	for _, violation := range doc.Tolerated() {
		logger.Warn("tolerating invalid segment graph", slog.String("problem", violation.Error()))
	}
	logger.Debug("parsed document",
		slog.String("organization", doc.Organization.String()),
		slog.Int("segments", len(doc.Segments())),
		slog.Int("pages", len(doc.PageNumbers())))
	return &Decoder{doc: doc, logger: logger}, nil
}

// Document returns the parsed segment arena.
func (d *Decoder) Document() *Document { return d.doc }

// PageCount returns the number of pages, one per page information segment.
func (d *Decoder) PageCount() int { return len(d.doc.PageNumbers()) }

// Comments returns the comments of the document's comment extensions.
func (d *Decoder) Comments() []Comment { return d.doc.Comments() }

// DecodePage decodes the page at index, counting from 0 in stream order.
func (d *Decoder) DecodePage(index int) (*Image, error) {
	pages := d.doc.PageNumbers()
	if index < 0 || index >= len(pages) {
		return nil, errorf(ErrValueOutOfRange, "page index %d of %d pages", index, len(pages))
	}
	return NewContext(d.doc, pages[index], d.logger).Decode()
}
