package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadHeader is returned when a validated JSON candidate fails header
// field validation (§4.3). It is non-fatal to the connection: the caller
// drops the frame and continues.
var ErrBadHeader = errors.New("wire: bad header")

const (
	minDimension = 1
	maxDimension = 100000
	maxBinSize   = 1_000_000
)

// Header is the decoded frame header. Width/Height are populated for
// image frames, BinSize/BinWidth/BinOffset for histogram frames; a given
// wire header carries one set or the other.
type Header struct {
	Width        int
	Height       int
	PixelFormat  PixelFormat
	BinSize      int
	BinWidth     int
	BinOffset    int
	FrameNumber  int
	TimeAtFrame  float64
	IsHistogram  bool
}

// PixelFormat mirrors the on-wire pixel encoding, decoded case-insensitively.
type PixelFormat int

const (
	PixelU16 PixelFormat = iota
	PixelU32
)

type rawHeader struct {
	Width       *int     `json:"width"`
	Height      *int     `json:"height"`
	PixelFormat *string  `json:"pixelFormat"`
	BinSize     *int     `json:"binSize"`
	BinWidth    *int     `json:"binWidth"`
	BinOffset   *int     `json:"binOffset"`
	FrameNumber *int     `json:"frameNumber"`
	TimeAtFrame *float64 `json:"timeAtFrame"`
}

// DecodeHeader parses an accepted JSON candidate into a typed Header,
// applying the defaults and range checks of §4.3.
func DecodeHeader(data []byte) (*Header, error) {
	var raw rawHeader
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	h := &Header{}

	if raw.FrameNumber != nil {
		if *raw.FrameNumber < 0 {
			return nil, fmt.Errorf("%w: frameNumber %d < 0", ErrBadHeader, *raw.FrameNumber)
		}
		h.FrameNumber = *raw.FrameNumber
	}
	if raw.TimeAtFrame != nil {
		h.TimeAtFrame = *raw.TimeAtFrame
	}

	h.IsHistogram = raw.BinSize != nil || raw.BinWidth != nil

	if h.IsHistogram {
		if raw.BinSize == nil || *raw.BinSize < 1 || *raw.BinSize > maxBinSize {
			return nil, fmt.Errorf("%w: binSize out of range", ErrBadHeader)
		}
		if raw.BinWidth == nil || *raw.BinWidth < 1 {
			return nil, fmt.Errorf("%w: binWidth out of range", ErrBadHeader)
		}
		h.BinSize = *raw.BinSize
		h.BinWidth = *raw.BinWidth
		if raw.BinOffset != nil {
			if *raw.BinOffset < 0 {
				return nil, fmt.Errorf("%w: binOffset < 0", ErrBadHeader)
			}
			h.BinOffset = *raw.BinOffset
		}
		return h, nil
	}

	if raw.Width == nil || *raw.Width < minDimension || *raw.Width > maxDimension {
		return nil, fmt.Errorf("%w: width out of range", ErrBadHeader)
	}
	if raw.Height == nil || *raw.Height < minDimension || *raw.Height > maxDimension {
		return nil, fmt.Errorf("%w: height out of range", ErrBadHeader)
	}
	h.Width = *raw.Width
	h.Height = *raw.Height

	h.PixelFormat = PixelU16
	if raw.PixelFormat != nil {
		switch strings.ToLower(*raw.PixelFormat) {
		case "uint16", "":
			h.PixelFormat = PixelU16
		case "uint32":
			h.PixelFormat = PixelU32
		default:
			return nil, fmt.Errorf("%w: unknown pixelFormat %q", ErrBadHeader, *raw.PixelFormat)
		}
	}

	return h, nil
}
