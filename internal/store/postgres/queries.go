package postgres

const querySchema = `
CREATE TABLE IF NOT EXISTS reminders (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT   NOT NULL,
    destination_id TEXT   NOT NULL DEFAULT '',
    title          TEXT   NOT NULL,
    description    TEXT   NOT NULL DEFAULT '',
    due_at         BIGINT NOT NULL,
    priority       TEXT   NOT NULL DEFAULT 'medium',
    status         TEXT   NOT NULL DEFAULT 'pending',
    context        JSONB  NOT NULL DEFAULT '{}',
    recurrence     TEXT   NOT NULL DEFAULT '',
    notified_at    BIGINT,
    version        BIGINT NOT NULL DEFAULT 1,
    created_at     BIGINT NOT NULL,
    updated_at     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_owner_status ON reminders(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, due_at);
CREATE INDEX IF NOT EXISTS idx_reminders_owner_due ON reminders(owner_id, due_at);
`

const reminderColumns = `id, owner_id, destination_id, title, description, due_at,
    priority, status, context, recurrence, notified_at, version, created_at, updated_at`

const queryInsert = `
INSERT INTO reminders (` + reminderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

const queryGet = `
SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1
`

const queryUpdate = `
UPDATE reminders
SET destination_id = $1, title = $2, description = $3, due_at = $4, priority = $5,
    status = $6, context = $7, recurrence = $8, notified_at = $9, version = $10, updated_at = $11
WHERE id = $12 AND version = $13
`

const queryExists = `
SELECT 1 FROM reminders WHERE id = $1
`

const queryDelete = `
DELETE FROM reminders WHERE id = $1
`

const queryListByOwner = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = $1
ORDER BY due_at ASC, id ASC
LIMIT $2 OFFSET $3
`

const queryListByOwnerStatus = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = $1 AND status = $2
ORDER BY due_at ASC, id ASC
LIMIT $3 OFFSET $4
`

const queryScanDue = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE status = 'pending' AND due_at <= $1 AND notified_at IS NULL
ORDER BY due_at ASC, id ASC
LIMIT $2
`

const queryListDue = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = $1 AND status = 'pending' AND due_at <= $2
ORDER BY due_at ASC, id ASC
`

const querySearch = `
SELECT ` + reminderColumns + ` FROM reminders
WHERE owner_id = $1 AND (title ILIKE $2 OR description ILIKE $2)
ORDER BY due_at ASC, id ASC
`

const queryCounts = `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE status = 'pending'),
    COUNT(*) FILTER (WHERE status = 'completed'),
    COUNT(*) FILTER (WHERE status = 'cancelled'),
    COUNT(*) FILTER (WHERE status = 'pending' AND due_at <= $2)
FROM reminders
WHERE owner_id = $1
`
