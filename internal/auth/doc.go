// Package auth owns every credential the assistant bridge issues.
//
// The Service holds short-lived authorization codes in memory and persists
// access tokens, refresh tokens and the rotating local-execution token pair
// to a JSON snapshot through FileStore. Every operation is serialised by a
// single mutex so that token rotation and revocation are atomic with respect
// to concurrent requests.
//
// Login accounts for the account-linking form live in SQLite and are hashed
// with Argon2id.
package auth
