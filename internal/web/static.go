package web

import (
	"embed"
)

// staticFiles holds the status page.
//
//go:embed static/*
var staticFiles embed.FS
