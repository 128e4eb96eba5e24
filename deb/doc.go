// Package deb reads and writes Debian binary packages in memory.
//
// The package treats a .deb file as a structured object: an ar container
// holding debian-binary, control.tar.gz and data.tar.gz members. NewPackage
// parses any io.Reader into a Package with typed control metadata;
// (*Package).WriteTo generates a valid archive deterministically without
// shelling out to dpkg. The primary consumer is the download pipeline,
// which inspects verified payloads after fetching them.
package deb
