package convert

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// convertPDF extracts the plain text stream of a PDF document.
func (c *Converter) convertPDF(in Input) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	return &Result{
		Text: buf.String(),
		Type: TypePDF,
		Size: int64(len(in.Data)),
	}, nil
}
