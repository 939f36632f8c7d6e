package memory

import (
	"testing"

	"github.com/bcnelson/free-api/internal/storage"
	"github.com/bcnelson/free-api/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}
