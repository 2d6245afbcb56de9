// Package ingest turns the two shapes a resume can arrive in (an uploaded PDF
// or pasted text) into one canonical payload.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"resume-reviewer/internal/domain"
)

// DefaultMaxDocumentBytes is the upload ceiling for resume documents.
const DefaultMaxDocumentBytes int64 = 5 << 20

const pdfContentType = "application/pdf"

var (
	ErrBadRequest          = errors.New("missing resume/job description")
	ErrDocumentTooLarge    = fmt.Errorf("%w: resume document exceeds size limit", ErrBadRequest)
	ErrUnsupportedDocument = fmt.Errorf("%w: only PDF resumes are supported", ErrBadRequest)
)

// Kind tags which representation a Resume carries.
type Kind string

const (
	KindDocument Kind = "document"
	KindText     Kind = "text"
)

// Upload is a resume document as received from the transport.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Input is the raw analyze request before normalization.
type Input struct {
	JobDescription string
	Text           string
	Document       *Upload
}

// Resume is either a Document or a Text.
type Resume interface {
	Kind() Kind
	// Excerpt is a short display string derived locally from the resume.
	Excerpt() string
}

// Document is an uploaded PDF held in memory.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (Document) Kind() Kind { return KindDocument }

func (d Document) Excerpt() string {
	text, err := ExtractPDFText(d.Data)
	if err != nil {
		return "PDF uploaded"
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "PDF uploaded"
	}
	return domain.TruncateExcerpt(text)
}

// Text is resume content pasted inline.
type Text struct {
	Content string
}

func (Text) Kind() Kind { return KindText }

func (t Text) Excerpt() string { return domain.TruncateExcerpt(t.Content) }

// Payload is the canonical request handed to the analysis client.
type Payload struct {
	JobDescription string
	Resume         Resume
}

// Adapter validates and normalizes analyze input.
type Adapter struct {
	maxBytes int64
}

func NewAdapter(maxBytes int64) *Adapter {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}
	return &Adapter{maxBytes: maxBytes}
}

// MaxBytes reports the document ceiling in effect.
func (a *Adapter) MaxBytes() int64 { return a.maxBytes }

// Normalize resolves in to exactly one resume representation. A non-empty
// document wins over text.
func (a *Adapter) Normalize(in Input) (*Payload, error) {
	jd := strings.TrimSpace(in.JobDescription)
	if jd == "" {
		return nil, ErrBadRequest
	}

	if in.Document != nil {
		doc, err := a.readDocument(in.Document)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return &Payload{JobDescription: jd, Resume: *doc}, nil
		}
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrBadRequest
	}
	return &Payload{JobDescription: jd, Resume: Text{Content: text}}, nil
}

// readDocument returns nil, nil for an empty upload so text can take over.
func (a *Adapter) readDocument(up *Upload) (*Document, error) {
	if up.Content == nil {
		return nil, nil
	}
	if up.Size > a.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(up.Content, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read resume document: %v", ErrBadRequest, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if int64(len(data)) > a.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	if !isPDFContentType(up.ContentType) || !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrUnsupportedDocument
	}

	return &Document{
		Filename:    documentName(up.Filename),
		ContentType: pdfContentType,
		Data:        data,
	}, nil
}

func isPDFContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	return mediaType == pdfContentType || mediaType == "application/x-pdf"
}

func documentName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "resume.pdf"
	}
	return name
}
