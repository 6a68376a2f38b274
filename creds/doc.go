// Package creds vends short-lived, tenant-scoped AWS credentials by chaining
// two role assumptions, memoizing the result in an external cache.
//
// # Flow
//
// A vend request carries the caller's bearer credential. The caller's opaque
// subject identifier is read from the token payload and used as the cache
// key. On a cache hit the cached credentials are returned without touching
// STS. On a miss, the vendor fetches the caller's account attributes (tenant
// role ARN, external ID, account ID) from the identity provider, assumes the
// fixed broker role with the service's own ambient credentials, then assumes
// the tenant role using the broker hop's credentials and the caller's
// external ID. The external ID is the security boundary: it prevents the
// broker hop from being replayed against an unintended tenant role.
//
// The resulting credentials are cached under the subject key with a fixed
// TTL; expiry is the cache service's job. Two concurrent misses for the same
// subject may both run the chain — both derive the same tenant credentials,
// so last write wins harmlessly and no single-flight deduplication is used.
//
// # Token handling
//
// The bearer token's payload is decoded without signature verification.
// Verification is the HTTP front door's responsibility; this package must
// only sit behind an authenticating layer.
package creds
