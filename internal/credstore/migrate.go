package credstore

import "github.com/florianilch/fincli/internal/claims"

// migrate upgrades records written before tenant support existed. Such
// records lack tenant_id, role, and schema_version; the claim fields are
// backfilled from the cached access token when it decodes, defaulted to
// null otherwise, and the record is stamped with the current schema
// version. Upgrades are persisted on the next save, never discarded.
func migrate(store *Store) {
	for _, identity := range store.Identities() {
		rec, _ := store.Get(identity)
		if rec.SchemaVersion >= CurrentSchemaVersion {
			continue
		}

		if rec.TenantID == nil || rec.Role == nil {
			if c, err := claims.ParseToken(rec.AccessToken); err == nil {
				if rec.TenantID == nil {
					rec.TenantID = c.TenantID
				}
				if rec.Role == nil {
					rec.Role = c.Role
				}
			}
		}

		rec.SchemaVersion = CurrentSchemaVersion
		store.migrated = true
	}
}
