// Package jbig2 decodes JBIG2 (ITU-T T.88) bi-level images, either complete
// JBIG2 files or the embedded streams found in PDF documents.
package jbig2

import (
	"crypto/md5"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pagebits/jbig2/internal/jbig2"
)

// Options configures JBIG2 decoding behavior.
type Options struct {
	// GlobalData provides optional global segment data, such as the
	// JBIG2Globals stream of a PDF image.
	GlobalData []byte
	// SrcData contains the JBIG2 data to decode.
	SrcData []byte
	// Embedded marks SrcData as a headerless embedded stream. Data given
	// with GlobalData, or without the file signature, is always embedded.
	Embedded bool
	// Logger receives decode diagnostics. nil means slog.Default().
	Logger *slog.Logger
}

// Comment is one key/value pair of a comment extension segment.
type Comment = jbig2.Comment

// Decoder decodes the pages of one JBIG2 document. It is safe for concurrent
// use; page decodes are serialized.
type Decoder struct {
	mu      sync.Mutex
	decoder *jbig2.Decoder
	id      uuid.UUID
	logger  *slog.Logger
}

// New parses the segments of the document described by opts. Pages are
// decoded on demand.
func New(opts Options) (*Decoder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := documentID(opts.GlobalData, opts.SrcData)
	logger = logger.With(slog.String("document", id.String()))

	internalDecoder, err := jbig2.NewDecoder(jbig2.DecoderOptions{
		GlobalData: opts.GlobalData,
		SrcData:    opts.SrcData,
		Embedded:   opts.Embedded,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return &Decoder{decoder: internalDecoder, id: id, logger: logger}, nil
}

// documentID derives a stable identifier from the document's bytes.
func documentID(globals, src []byte) uuid.UUID {
	h := md5.New()
	h.Write(globals)
	h.Write(src)
	id, _ := uuid.FromBytes(h.Sum(nil))
	return id
}

// ID returns an identifier derived from the content of the document. The
// same bytes always give the same ID.
func (d *Decoder) ID() uuid.UUID { return d.id }

// PageCount returns the number of pages in the document.
func (d *Decoder) PageCount() int { return d.decoder.PageCount() }

// Comments returns the comments stored in the document's extension segments.
func (d *Decoder) Comments() []Comment { return d.decoder.Comments() }

// Page decodes the page at index, counting from 0.
func (d *Decoder) Page(index int) (*Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	img, err := d.decoder.DecodePage(index)
	if err != nil {
		d.logger.Error("page decode failed", slog.Int("page", index), slog.Any("error", err))
		return nil, err
	}
	d.logger.Info("decoded page",
		slog.Int("page", index),
		slog.Int("width", img.Width()),
		slog.Int("height", img.Height()),
		slog.Duration("elapsed", time.Since(start)))
	return newImage(img), nil
}

// DecodeAll decodes every page of the document in order.
func (d *Decoder) DecodeAll() ([]*Image, error) {
	pages := make([]*Image, 0, d.PageCount())
	for i := 0; i < d.PageCount(); i++ {
		img, err := d.Page(i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	return pages, nil
}

// Info describes the structure of a parsed document.
type Info struct {
	Organization string
	Pages        int
	Segments     []SegmentInfo
	// Tolerated lists segment graph violations accepted for compatibility
	// with known encoders.
	Tolerated []error
}

// SegmentInfo describes one segment header.
type SegmentInfo struct {
	Number     uint32
	Type       string
	Page       uint32
	DataLength int
	Refs       []uint32
}

// Info returns the structure of the document.
func (d *Decoder) Info() Info {
	doc := d.decoder.Document()
	info := Info{
		Organization: doc.Organization.String(),
		Pages:        d.PageCount(),
		Tolerated:    doc.Tolerated(),
	}
	for _, seg := range doc.Segments() {
		si := SegmentInfo{
			Number:     seg.Number,
			Type:       seg.Type().String(),
			Page:       seg.PageAssociation,
			DataLength: len(seg.Data),
		}
		for _, ref := range seg.Refs {
			si.Refs = append(si.Refs, ref.Number)
		}
		info.Segments = append(info.Segments, si)
	}
	return info
}
