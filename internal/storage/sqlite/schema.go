package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
    id TEXT PRIMARY KEY,
    service TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    restarts INTEGER NOT NULL DEFAULT 0,
    escalated INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL DEFAULT '',
    root_cause TEXT NOT NULL DEFAULT '',
    actions TEXT NOT NULL DEFAULT '[]',
    final_phase TEXT NOT NULL,
    notified INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_episodes_service ON episodes(service);
CREATE INDEX IF NOT EXISTS idx_episodes_started ON episodes(started_at);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    service TEXT NOT NULL,
    episode_id TEXT NOT NULL DEFAULT '',
    phase TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL CHECK(severity IN ('info', 'warning', 'error', 'critical')),
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_service ON events(service);
CREATE INDEX IF NOT EXISTS idx_events_episode ON events(episode_id);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
`
