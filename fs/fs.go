// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* common-passwords.txt.gz
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "common-passwords.txt.gz"
)
