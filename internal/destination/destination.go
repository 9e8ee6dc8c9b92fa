// Package destination builds the PUT /server/destination body Serval
// expects and validates the enum indices and destination strings that
// feed it (spec.md §4.8). Destination-string edge cases (the `file:/`
// single-slash rule, `tcp://listen@host:port` stripping) are grounded on
// original_source/tpx3App/src/ADTimePix.cpp's parsing functions.
package destination

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadEnum is returned when an enum index is out of range.
var ErrBadEnum = errors.New("destination: bad enum index")

// ErrInvalidPath is returned when a destination string fails parsing.
var ErrInvalidPath = errors.New("destination: invalid path")

// Format enumerates Serval's channel output formats (0-4).
const (
	FormatTIFF = iota
	FormatPGM
	FormatPNG
	FormatJSONImage
	FormatJSONHisto
)

// Mode enumerates Serval's per-pixel data modes (0-4).
const (
	ModeCount = iota
	ModeToT
	ModeToA
	ModeToF
	ModeCountFB
)

// IntegrationMode enumerates how successive frames are integrated (0-2).
const (
	IntegrationSum = iota
	IntegrationAverage
	IntegrationLast
)

// SplitStrategy enumerates Serval's file-splitting strategies (0-1).
const (
	SplitSingleFile = iota
	SplitFrame
)

// SamplingMode enumerates Serval's destination sampling strategies (0-1).
const (
	SamplingSkipOnFrame = iota
	SamplingSkipOnPeriod
)

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%w: %s=%d out of range [%d,%d]", ErrBadEnum, name, value, min, max)
	}
	return nil
}

// ValidateEnums checks format/mode/integrationMode/splitStrategy against
// their closed ranges (§4.8).
func ValidateEnums(format, mode, integrationMode, splitStrategy int) error {
	if err := validateRange("format", format, FormatTIFF, FormatJSONHisto); err != nil {
		return err
	}
	if err := validateRange("mode", mode, ModeCount, ModeCountFB); err != nil {
		return err
	}
	if err := validateRange("integration_mode", integrationMode, IntegrationSum, IntegrationLast); err != nil {
		return err
	}
	if err := validateRange("split_strategy", splitStrategy, SplitSingleFile, SplitFrame); err != nil {
		return err
	}
	return nil
}

// ValidateIntegrationSize checks integration_size's closed range
// (§4.8: [-1, 32]).
func ValidateIntegrationSize(size int) error {
	return validateRange("integration_size", size, -1, 32)
}

// Kind is the parsed destination scheme.
type Kind int

const (
	KindFile Kind = iota
	KindHTTP
	KindTCP
)

// Target is a parsed destination string.
type Target struct {
	Kind   Kind
	Path   string // KindFile: filesystem path after "file:"
	URL    string // KindHTTP: the full "http://..." string
	Listen bool   // KindTCP: true if "listen@" was present
	Host   string // KindTCP
	Port   string // KindTCP
}

// Parse parses a destination string per §4.8's case-sensitive rules,
// grounded on ADTimePix.cpp's checkImgPath/destination parsing:
//   - "file:" must be followed by exactly one '/'; anything else is
//     InvalidPath (the source rejects "file://" and bare "file:").
//   - "http://" selects streaming over HTTP; the remainder is kept as-is.
//   - "tcp://" selects streaming over TCP; the remainder is either
//     "host:port" or "listen@host:port" with the "listen@" prefix stripped.
func Parse(dest string) (Target, error) {
	switch {
	case strings.HasPrefix(dest, "file:"):
		rest := dest[len("file:"):]
		if !strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "//") {
			return Target{}, fmt.Errorf("%w: %q must be file: followed by exactly one /", ErrInvalidPath, dest)
		}
		return Target{Kind: KindFile, Path: rest}, nil

	case strings.HasPrefix(dest, "http://"):
		return Target{Kind: KindHTTP, URL: dest}, nil

	case strings.HasPrefix(dest, "tcp://"):
		rest := dest[len("tcp://"):]
		listen := false
		if strings.HasPrefix(rest, "listen@") {
			listen = true
			rest = rest[len("listen@"):]
		}
		host, port, ok := strings.Cut(rest, ":")
		if !ok || host == "" || port == "" {
			return Target{}, fmt.Errorf("%w: %q is not host:port", ErrInvalidPath, dest)
		}
		return Target{Kind: KindTCP, Listen: listen, Host: host, Port: port}, nil

	default:
		return Target{}, fmt.Errorf("%w: unrecognized scheme in %q", ErrInvalidPath, dest)
	}
}

// StreamBody is the PUT /server/destination entry for a streaming
// (http/tcp) channel.
type StreamBody struct {
	Base      string `json:"Base"`
	QueueSize int    `json:"QueueSize"`
}

// FileBody is the PUT /server/destination entry for a file channel.
type FileBody struct {
	Base                       string `json:"Base"`
	FilePattern                string `json:"FilePattern"`
	Format                     int    `json:"Format"`
	Mode                       int    `json:"Mode"`
	IntegrationSize            int    `json:"IntegrationSize,omitempty"`
	IntegrationMode            *int   `json:"IntegrationMode,omitempty"`
	StopMeasurementOnDiskLimit bool   `json:"StopMeasurementOnDiskLimit"`
	QueueSize                  int    `json:"QueueSize"`
	SplitStrategy              *int   `json:"SplitStrategy,omitempty"`
}

// ChannelSpec is the validated input the destination configurator needs
// to build a body for one channel.
type ChannelSpec struct {
	Destination     string
	FilePattern     string
	Format          int
	Mode            int
	IntegrationMode int
	IntegrationSize int
	SplitStrategy   int
	QueueSize       int
}

// Build validates spec's enums and destination string and returns the
// body to PUT for this channel: either a StreamBody or a FileBody.
// A missing/empty Destination is treated as "channel disabled" — Build
// returns (nil, nil, nil) rather than an error, per §4.8's "missing
// parameter is treated as channel disabled rather than fatal".
func Build(spec ChannelSpec) (stream *StreamBody, file *FileBody, err error) {
	if spec.Destination == "" {
		return nil, nil, nil
	}
	if err := ValidateEnums(spec.Format, spec.Mode, spec.IntegrationMode, spec.SplitStrategy); err != nil {
		return nil, nil, err
	}
	if err := ValidateIntegrationSize(spec.IntegrationSize); err != nil {
		return nil, nil, err
	}

	target, err := Parse(spec.Destination)
	if err != nil {
		return nil, nil, err
	}

	switch target.Kind {
	case KindHTTP, KindTCP:
		return &StreamBody{Base: spec.Destination, QueueSize: spec.QueueSize}, nil, nil
	case KindFile:
		integrationMode := spec.IntegrationMode
		splitStrategy := spec.SplitStrategy
		return nil, &FileBody{
			Base:                       spec.Destination,
			FilePattern:                spec.FilePattern,
			Format:                     spec.Format,
			Mode:                       spec.Mode,
			IntegrationSize:            spec.IntegrationSize,
			IntegrationMode:            &integrationMode,
			StopMeasurementOnDiskLimit: true,
			QueueSize:                  spec.QueueSize,
			SplitStrategy:              &splitStrategy,
		}, nil
	default:
		return nil, nil, fmt.Errorf("%w: unhandled destination kind", ErrInvalidPath)
	}
}
