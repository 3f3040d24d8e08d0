package memory

import (
	"testing"

	"curator/internal/store"
	"curator/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
