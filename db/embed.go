// Package db embeds the schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for the catalog, storefront and price tables.
//
//go:embed migrations/001_schema.sql
var Schema string
