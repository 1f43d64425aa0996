// Package db provides the embedded database schema and the sample catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SampleProducts is the catalog loaded by seed-db when no file is given.
//
//go:embed seed/products.json
var SampleProducts []byte
