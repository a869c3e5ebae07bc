package repo

// RebindForTest exposes placeholder rewriting to external tests.
func RebindForTest(db *DB, query string) string { return db.rebind(query) }
