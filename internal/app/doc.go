// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the host loop that populates the view
// directory from a scene and ticks the scheduler, decoupled from any specific
// entrypoint like a CLI.
package app
