package memstore_test

import (
	"testing"

	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store/memstore"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store/storetest"
)

func TestMemStoreCompliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memstore.New()
	})
}
