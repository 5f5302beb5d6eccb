// Package rules registers the executable compliance rules with the core
// registry. Import it for side effects to make the rules available:
//
//	import _ "github.com/JonMunkholm/sdtm/internal/core/rules"
//
// Each file uses init() to register the rules of one standard family.
package rules
