// Package database manages the lifecycle of one embedded database described
// by a profile.DatabaseInfo asset.
//
// A Database owns a single pinned connection opened through
// github.com/mattn/go-sqlite3. Hooks, temporary tables and in-memory
// attachments all live on that connection, so everything a Database does
// runs on it.
//
// Opening a database compares the stored application id and user version
// with the asset:
//
//   - application_id 0: the file is new; the default tables, custom tables
//     and stored statements are created, Handler.OnCreate runs, and both
//     version fields are stamped on main and every attachment.
//   - application_id differs: the file belongs to another application and
//     Open fails with ErrApplicationIDMismatch.
//   - user_version differs: Handler.OnUpdate runs and the new version is
//     stamped everywhere.
//
// Create and update run inside one transaction; a handler error rolls it
// back and fails the open.
package database
