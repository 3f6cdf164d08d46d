// Package config defines the format-agnostic scene model: the views to spawn,
// their predecessors and tags, scripted scene events and scheduler settings.
//
// The `config.Model` is the single source of truth for the `app` package.
// Concrete loaders, such as the HCL one, live in separate packages.
package config
