// Package store declares the search history repository. Implementations live
// under internal/storage; this package must not import database drivers.
package store
