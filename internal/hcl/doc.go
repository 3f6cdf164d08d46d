// Package hcl provides the concrete HCL implementation of the `config.Loader`
// interface. It parses scene files, decodes their blocks with gohcl, converts
// list attributes through cty and validates cross references before handing
// back a `config.Model`.
package hcl
