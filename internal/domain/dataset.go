package domain

import (
	"fmt"
	"path/filepath"
)

// Publisher identifies one of the known character datasets.
// Each publisher maps to exactly one CSV file on disk.
type Publisher string

const (
	PublisherDC     Publisher = "dc"
	PublisherMarvel Publisher = "marvel"
)

// Publishers lists every recognized dataset identifier.
func Publishers() []Publisher {
	return []Publisher{PublisherDC, PublisherMarvel}
}

// Valid reports whether p is one of the recognized publishers.
func (p Publisher) Valid() bool {
	switch p {
	case PublisherDC, PublisherMarvel:
		return true
	}
	return false
}

// ResolveDataset maps a publisher identifier to its CSV path under dataDir.
// Unknown publishers are rejected here, before any file access happens.
func ResolveDataset(dataDir string, p Publisher) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("unknown publisher: %q (want one of %v)", p, Publishers())
	}
	return filepath.Join(dataDir, string(p)+"-wikia-data.csv"), nil
}
