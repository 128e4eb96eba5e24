// Package apt downloads a single binary package from a remote APT repository.
//
// # Design Philosophy
//
// The package implements the acquisition side of the APT protocol as a
// strictly sequential pipeline: parse the repository specification, fetch
// the repository's Release metadata (preferring the inline-signed InRelease
// form), verify its OpenPGP signature against a caller-supplied repository
// key, locate the requested package inside a checksum-verified Packages
// index, and finally download and checksum-verify the package payload.
//
// Every request is a fresh, self-contained fetch: no repository metadata is
// cached between calls, and all scratch material (metadata files, trust
// keyring) lives in a temporary directory that is removed on every exit
// path. Verification happens in-process with ProtonMail's openpgp
// implementation; no external gpg binary is required.
//
// Trust is opt-in: when no repository key is supplied the pipeline proceeds
// without authentication and logs a warning. Callers that need integrity
// guarantees must supply the repository's public key.
package apt
