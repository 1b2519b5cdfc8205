// Package integrity links journal entries into a hash chain and signs each
// link with an HMAC keyring, so edited or reordered archive lines are detected
// on verification.
package integrity
