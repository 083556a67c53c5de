// Package asset resolves video identifiers and the on-disk layout of a
// single asset directory.
package asset
