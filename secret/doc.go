// Package secret implements credential-at-rest protection: an authenticated
// envelope cipher for individual string values and custody of the root key the
// envelopes are sealed with. Envelopes are self-describing so encrypted and
// plaintext values can coexist in the same configuration document.
package secret
