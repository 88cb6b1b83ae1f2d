//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver.
	// CatalogStore detects it at Open and routes SearchVectors through
	// vec_distance_cosine instead of the in-process scan.
	vec.Auto()
}
