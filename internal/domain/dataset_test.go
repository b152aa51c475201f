package domain_test

import (
	"path/filepath"
	"testing"

	"comicdb/internal/domain"
)

func TestResolveDataset(t *testing.T) {
	path, err := domain.ResolveDataset("data", domain.PublisherDC)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join("data", "dc-wikia-data.csv") {
		t.Errorf("path = %q", path)
	}

	path, err = domain.ResolveDataset("/srv/datasets", domain.PublisherMarvel)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join("/srv/datasets", "marvel-wikia-data.csv") {
		t.Errorf("path = %q", path)
	}
}

func TestResolveDataset_UnknownPublisher(t *testing.T) {
	if _, err := domain.ResolveDataset("data", domain.Publisher("image")); err == nil {
		t.Fatal("expected error for unrecognized publisher")
	}
}

func TestPublisherValid(t *testing.T) {
	for _, p := range domain.Publishers() {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if domain.Publisher("dark-horse").Valid() {
		t.Error("dark-horse should not be valid")
	}
}
