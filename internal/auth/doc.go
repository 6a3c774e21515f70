// Package auth provides authentication primitives for Herp Keeper Core.
//
// It covers:
//   - Argon2id password hashing in PHC string format
//   - JWT access tokens (HS256, short-lived, issuer/audience pinned)
//   - Opaque refresh tokens, hashed at rest
//
// Access tokens carry the username as the subject and the account role as
// a custom claim. WebSocket sessions may present a just-expired access
// token, so ParseTokenIgnoreExpiration exists for that path; everything
// else goes through ParseToken.
package auth
