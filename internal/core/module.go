// Package core provides the module system foundation for mnemo.
//
// Modules self-register from init() with a dotted ID such as
// "index.sqlite" or "embedder.openai"; the App instantiates them from
// configuration and drives their lifecycle.
package core

// ModuleID identifies a module type, namespaced by dots
// (e.g. "index.pgvector", "reminders.sqlite").
type ModuleID string

// Namespace returns the portion of the ID before the last dot,
// or the whole ID if it has none.
func (id ModuleID) Namespace() string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i]
		}
	}
	return s
}

// ModuleInfo describes a registered module type.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements.
// Lifecycle interfaces (Configurable, Provisioner, Validator, Starter,
// Stopper) are optional and detected by type assertion.
type Module interface {
	ModuleInfo() ModuleInfo
}
