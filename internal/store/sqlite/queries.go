package sqlite

const querySchema = `
CREATE TABLE IF NOT EXISTS reminders (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT    NOT NULL,
    destination_id TEXT    NOT NULL DEFAULT '',
    title          TEXT    NOT NULL,
    description    TEXT    NOT NULL DEFAULT '',
    due_at         INTEGER NOT NULL,
    priority       TEXT    NOT NULL DEFAULT 'medium',
    status         TEXT    NOT NULL DEFAULT 'pending',
    context        TEXT    NOT NULL DEFAULT '{}',
    recurrence     TEXT    NOT NULL DEFAULT '',
    notified_at    INTEGER,
    version        INTEGER NOT NULL DEFAULT 1,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_owner_status ON reminders(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, due_at);
CREATE INDEX IF NOT EXISTS idx_reminders_owner_due ON reminders(owner_id, due_at);
`

const reminderColumns = `id, owner_id, destination_id, title, description, due_at,
    priority, status, context, recurrence, notified_at, version, created_at, updated_at`

const queryInsert = `
INSERT INTO reminders (` + reminderColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const queryGet = `
SELECT ` + reminderColumns + ` FROM reminders WHERE id = ?
`

const queryUpdate = `
UPDATE reminders
SET destination_id = ?, title = ?, description = ?, due_at = ?, priority = ?,
    status = ?, context = ?, recurrence = ?, notified_at = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?
`

const queryExists = `
SELECT 1 FROM reminders WHERE id = ?
`

const queryDelete = `
DELETE FROM reminders WHERE id = ?
`

const queryListByOwner = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = ?
ORDER BY due_at ASC, id ASC
LIMIT ? OFFSET ?
`

const queryListByOwnerStatus = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = ? AND status = ?
ORDER BY due_at ASC, id ASC
LIMIT ? OFFSET ?
`

const queryScanDue = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE status = 'pending' AND due_at <= ? AND notified_at IS NULL
ORDER BY due_at ASC, id ASC
LIMIT ?
`

const queryListDue = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = ? AND status = 'pending' AND due_at <= ?
ORDER BY due_at ASC, id ASC
`

const querySearch = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = ? AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)
ORDER BY due_at ASC, id ASC
`

const queryCounts = `
SELECT
    COUNT(*),
    COALESCE(SUM(status = 'pending'), 0),
    COALESCE(SUM(status = 'completed'), 0),
    COALESCE(SUM(status = 'cancelled'), 0),
    COALESCE(SUM(status = 'pending' AND due_at <= ?), 0)
FROM reminders
WHERE owner_id = ?
`
