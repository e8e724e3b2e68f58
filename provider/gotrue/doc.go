// Package gotrue is an authcard backend for hosted GoTrue/PostgREST
// services: password sign in, sign up with a display name, and the
// profile row insert.
//
// Use New with a project URL and anon key. Set JWKSURL to verify returned
// access tokens; otherwise the session expiry is read from the token
// claims without verification.
package gotrue
