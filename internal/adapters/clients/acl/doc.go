// Package acl is the anti-corruption layer between the remote posts API and
// the quote domain.
//
// The remote server speaks in posts:
//
//	{"userId": 1, "id": 7, "title": "...", "body": "..."}
//
// and [RemoteQuoteClient] turns each post into a domain.Quote with the title
// as text and "User <userId>" as category. Posts without a title are skipped.
// New quotes go back up as {title, body, userId} with the category as body.
//
// Nothing outside this package sees a post DTO or an HTTP status. Failures
// reach the app layer as domain errors through [MapHTTPError]:
//
//   - 404 → [domain.ErrNotFound]
//   - 409 → [domain.ErrConflict]
//   - 400/422 → [domain.ErrValidation]
//   - 401/403/429/5xx, transport errors, open circuit → [domain.ErrUnavailable]
//
// Undecodable response bodies are also reported as unavailable; the
// reconciler treats them like any other failed fetch.
package acl
