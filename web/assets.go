// Package web embeds the browser-side assets served by the protection
// layer.
package web

import "embed"

//go:embed session-manager.js
var Assets embed.FS
