// Package templates renders the importer's HTML pages.
//
// The components are written in .templ files; run `templ generate` after
// editing them.
package templates
