/*
Package kpath implements path normalization and prefix-confinement checks
for the container control API: resolving a container's rootpath from a
CLI-supplied path, and checking that a caller's working directory is
confined to a container's rootpath before start/resume are allowed.
*/
package kpath
