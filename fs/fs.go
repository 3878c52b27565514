// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* data/common-passwords.txt.gz
var FS embed.FS
