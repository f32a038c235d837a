package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/smart-document-manager/internal/core/ports"
)

// Inspector checks that a PDF parses before it is uploaded.
type Inspector struct{}

var _ ports.DocumentInspector = Inspector{}

func NewInspector() Inspector {
	return Inspector{}
}

func (Inspector) PageCount(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, errors.New("empty pdf")
	}
	// The parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
