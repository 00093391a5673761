// Package plugins hosts game-system plugin subpackages. It contains no
// runtime code itself; it carries the architecture guard that keeps plugins
// on the core facade instead of the domain package.
package plugins
