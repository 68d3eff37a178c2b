package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/eargollo/piifinder/internal/media"
)

const docxBodyPart = "word/document.xml"

// DOCX extracts paragraph text from word-processing containers.
type DOCX struct{}

// NewDOCX returns a DOCX extractor.
func NewDOCX() *DOCX { return &DOCX{} }

func (*DOCX) Name() string                 { return "docx" }
func (*DOCX) SupportedMIMETypes() []string { return []string{media.MIMEDocx} }
func (*DOCX) Priority() int                { return 50 }

// Extract returns the text of every paragraph in document order, one
// paragraph per line. Paragraphs inside tables are included.
func (*DOCX) Extract(_ context.Context, path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBodyPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrMalformed, docxBodyPart, err)
		}
		text, err := paragraphText(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformed, docxBodyPart, err)
		}
		return &Document{Text: text}, nil
	}
	return nil, fmt.Errorf("%w: missing %s", ErrMalformed, docxBodyPart)
}

// paragraphText streams WordprocessingML and collects the character data of
// w:t elements. w:tab and w:br become whitespace; each closing w:p ends a
// line.
func paragraphText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paras  []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}
