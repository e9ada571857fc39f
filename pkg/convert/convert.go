// Package convert turns raw pipeline inputs (file bytes or URLs) into
// normalized text. The source type is resolved once at entry and picks
// exactly one conversion function; nothing downstream sniffs content.
package convert

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Type is the closed set of source variants the pipeline accepts.
type Type string

const (
	TypePDF     Type = "pdf"
	TypeSRT     Type = "srt"
	TypeTXT     Type = "txt"
	TypeYouTube Type = "youtube"
	TypeOther   Type = "other"
)

// Input is either file bytes with a declared name, or a URL.
type Input struct {
	FileName string
	Data     []byte
	URL      string
}

// Result is the normalized output of a conversion.
type Result struct {
	Text      string
	Type      Type
	PageTitle string
	Size      int64
}

// ConversionError is the fatal failure of the conversion stage; the
// pipeline aborts on it because there is no partial result to salvage.
type ConversionError struct {
	Type Type
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s source: %v", e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter resolves the input variant and runs its conversion function.
type Converter struct {
	HTTPClient *http.Client
	// MaxFetchSize caps URL downloads. Defaults to 10 MB.
	MaxFetchSize int64
	// Logger is used for informational messages. nil means no logging.
	Logger *log.Logger
}

const defaultMaxFetchSize = 10 * 1024 * 1024

// Resolve determines the source type from the declared file extension or
// the URL host. It never inspects content.
func Resolve(in Input) Type {
	if in.URL != "" {
		if isYouTubeURL(in.URL) {
			return TypeYouTube
		}
		return TypeOther
	}
	switch strings.ToLower(path.Ext(in.FileName)) {
	case ".pdf":
		return TypePDF
	case ".srt":
		return TypeSRT
	case ".txt":
		return TypeTXT
	default:
		return TypeOther
	}
}

// Convert normalizes the input into text. It fails with a
// *ConversionError when the variant's converter errors or produces no
// content.
func (c *Converter) Convert(ctx context.Context, in Input) (*Result, error) {
	typ := Resolve(in)

	var (
		res *Result
		err error
	)
	switch typ {
	case TypePDF:
		res, err = c.convertPDF(in)
	case TypeSRT, TypeTXT, TypeOther:
		if in.URL != "" {
			res, err = c.convertWebpage(ctx, in)
		} else {
			res, err = c.convertPlain(in, typ)
		}
	case TypeYouTube:
		res, err = c.convertYouTube(ctx, in)
	}
	if err != nil {
		return nil, &ConversionError{Type: typ, Err: err}
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, &ConversionError{Type: typ, Err: fmt.Errorf("no content extracted")}
	}
	return res, nil
}

// convertPlain passes srt/txt file bytes through unchanged; the
// transcript cleaner handles subtitle noise later.
func (c *Converter) convertPlain(in Input, typ Type) (*Result, error) {
	return &Result{
		Text: string(in.Data),
		Type: typ,
		Size: int64(len(in.Data)),
	}, nil
}

func isYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host == "youtube.com" || host == "youtu.be"
}

func (c *Converter) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Converter) maxFetchSize() int64 {
	if c.MaxFetchSize > 0 {
		return c.MaxFetchSize
	}
	return defaultMaxFetchSize
}

func (c *Converter) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}
