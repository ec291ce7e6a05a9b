package vos

import "errors"

var (
	// ErrCatalogNotFound means no catalog matches the requested name or URL.
	ErrCatalogNotFound = errors.New("vos: catalog not found")

	// ErrDuplicateCatalog means a catalog with the same name already exists.
	ErrDuplicateCatalog = errors.New("vos: duplicate catalog name")

	// ErrDuplicateURL means another catalog already uses the access URL.
	ErrDuplicateURL = errors.New("vos: duplicate access URL")

	// ErrInvalidCatalog means a catalog record lacks a usable "url".
	ErrInvalidCatalog = errors.New("vos: invalid catalog")

	// ErrInvalidDatabase means the JSON is not a catalog database.
	ErrInvalidDatabase = errors.New("vos: invalid database")

	// ErrUnsupportedVersion means the database was written by a newer format.
	ErrUnsupportedVersion = errors.New("vos: unsupported database version")

	// ErrFileExists is returned by ToJSON when overwrite is false.
	ErrFileExists = errors.New("vos: file exists")

	// ErrRegistryField means the registry table lacks a required column.
	ErrRegistryField = errors.New("vos: registry is missing a required field")

	// ErrBadPattern wraps an invalid ListCatalogs glob.
	ErrBadPattern = errors.New("vos: bad pattern")
)
