package snapshot

import "fmt"

// NewStore builds the Store named by kind ("" and "memory" both mean
// in-process only; "sqlite" requires the sqlite build tag).
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported snapshot backend: %s", kind)
	}
}

// CloseIfSupported calls store's Close (part of the Store interface) and
// returns its error; for a nil store it does nothing and returns nil.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
