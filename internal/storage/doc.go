// Package storage persists listings, subscribers and the delivery log in SQLite.
//
// processed_urls.url_key is the dedup key: InsertListing is a single
// conflict-tolerant write that reports whether a row was created.
// url_clicks is written by the external redirect service; it is created here so
// both processes agree on one schema.
package storage
