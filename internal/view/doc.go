// Package view renders the HTML catalog page. The components are written in
// catalog.templ; run templ generate after editing it.
package view
