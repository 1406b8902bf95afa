package memstore

import (
	"testing"

	"trackit/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, New())
}
