// Package publish sends a summary of every tick to an external observer.
//
// The only transport is socket.io: each tick becomes one "frame" event on the
// configured namespace. When no URL is configured a no-op publisher is used.
package publish
