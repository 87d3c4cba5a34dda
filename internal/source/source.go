// Package source resolves resource URLs to sheets and opens them.
//
// Supported resources:
//
//	aws://batch                      every Batch job in every queue
//	aws://batch/jobs                 same as aws://batch
//	aws://batch/queues/<glob>        jobs in queues matching <glob>
//	dbm://<path> or <path>           a key-value database file
package source

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which sheet a source opens.
type Kind string

const (
	KindJobs     Kind = "jobs"
	KindKeyValue Kind = "dbm"
)

const (
	schemeAWS = "aws://"
	schemeDBM = "dbm://"
)

var (
	// ErrUnsupportedResource is returned for URLs no sheet can serve.
	ErrUnsupportedResource = errors.New("unsupported resource")

	// ErrOutsideRoot is returned for key-value paths outside the
	// configured root directory.
	ErrOutsideRoot = errors.New("path outside allowed root")
)

// Source is a parsed resource URL.
type Source struct {
	Raw  string
	Kind Kind

	// QueuePattern restricts a jobs source to matching queues.
	QueuePattern string

	// Path locates a key-value database.
	Path string
}

// Parse resolves raw into a Source. Anything under aws:// other than the
// Batch resources, and any other URL scheme, is ErrUnsupportedResource.
func Parse(raw string) (Source, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Source{}, fmt.Errorf("%w: empty source", ErrUnsupportedResource)
	}

	switch {
	case strings.HasPrefix(s, schemeAWS):
		return parseAWS(s)
	case strings.HasPrefix(s, schemeDBM):
		path := strings.TrimPrefix(s, schemeDBM)
		if path == "" {
			return Source{}, fmt.Errorf("%w: %s: missing path", ErrUnsupportedResource, raw)
		}
		return Source{Raw: s, Kind: KindKeyValue, Path: path}, nil
	case strings.Contains(s, "://"):
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedResource, raw)
	default:
		return Source{Raw: s, Kind: KindKeyValue, Path: s}, nil
	}
}

func parseAWS(s string) (Source, error) {
	rest := strings.TrimSuffix(strings.TrimPrefix(s, schemeAWS), "/")
	parts := strings.SplitN(rest, "/", 3)

	if parts[0] != "batch" {
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedResource, s)
	}
	switch {
	case len(parts) == 1:
		return Source{Raw: s, Kind: KindJobs}, nil
	case len(parts) == 2 && parts[1] == "jobs":
		return Source{Raw: s, Kind: KindJobs}, nil
	case len(parts) == 3 && parts[1] == "queues" && parts[2] != "":
		return Source{Raw: s, Kind: KindJobs, QueuePattern: parts[2]}, nil
	default:
		return Source{}, fmt.Errorf("%w: %s", ErrUnsupportedResource, s)
	}
}
