package mapper

import (
	"fmt"

	"github.com/exploopio/depaudit/pkg/identity"
)

// DiagnosticKind classifies a per-node anomaly absorbed during mapping.
type DiagnosticKind int

const (
	// Unmatched: no table entry under the exact or fallback identity. The
	// node and its subtree are dropped.
	Unmatched DiagnosticKind = iota + 1
	// NoBackingFile: neither the node nor a reconciled artifact has a file.
	// The node is reported without checksum.
	NoBackingFile
	// ChecksumUnavailable: hashing the backing file failed. The node is
	// reported without checksum.
	ChecksumUnavailable
)

func (k DiagnosticKind) String() string {
	switch k {
	case Unmatched:
		return "unmatched"
	case NoBackingFile:
		return "no_backing_file"
	case ChecksumUnavailable:
		return "checksum_unavailable"
	default:
		return "unknown"
	}
}

// Diagnostic records a node the mapper could not fully process.
type Diagnostic struct {
	Kind DiagnosticKind

	// ID is the node's exact identity; Fallback the base version identity
	// tried after it (Unmatched only).
	ID       identity.ID
	Fallback identity.ID

	// Coordinates of the artifact, group:artifact:type:classifier:version
	Coordinates string

	// File that could not be hashed (ChecksumUnavailable only)
	File string

	// Err is the hashing error (ChecksumUnavailable only)
	Err error
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case Unmatched:
		if d.Fallback.Equal(d.ID) {
			return fmt.Sprintf("no project found for artifact %s", d.ID)
		}
		return fmt.Sprintf("no project found for artifact %s (nor %s)", d.ID, d.Fallback)
	case NoBackingFile:
		return fmt.Sprintf("could not generate checksum, no file specified: %s", d.ID)
	case ChecksumUnavailable:
		return fmt.Sprintf("could not generate checksum of %s for %s: %v", d.File, d.ID, d.Err)
	default:
		return d.ID.String()
	}
}
