// internal/nodeid/doc.go

/*
Package nodeid provides a structured, type-safe representation for pipeline
node identifiers, based on the canonical format `<entity>.<stage>`.

The entity part is an entity.ID in its "<index>v<generation>" form and the
stage part is a stage name, e.g., `3v1.prepare`, `3v1.core` or `3v1.bloom_2d`.

This package enforces the identifier schema and centralizes all
formatting and parsing logic. Because the generation is part of the key, two
graphs built before and after a view's slot is recycled never share node keys.
*/
package nodeid
