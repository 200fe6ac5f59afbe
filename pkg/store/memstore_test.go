package store_test

import (
	"testing"

	"github.com/lucerna-ai/lucerna/pkg/store"
	"github.com/lucerna-ai/lucerna/pkg/store/storetest"
)

func TestMemStore_Contract(t *testing.T) {
	storetest.RunContract(t, store.NewMemStore())
}
