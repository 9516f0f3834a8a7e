package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner TEXT NOT NULL DEFAULT '',
				attributes TEXT,
				columns TEXT,
				nrows INTEGER NOT NULL DEFAULT 0,
				ncols INTEGER NOT NULL DEFAULT 0,
				session_key TEXT NOT NULL DEFAULT '',
				last_email_hash TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				deleted_at TIMESTAMP
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE UNIQUE INDEX idx_workflows_owner_name ON workflows(owner, name)
				WHERE deleted_at IS NULL;

			CREATE TABLE workflow_actions (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				action_type TEXT NOT NULL,
				text_content TEXT NOT NULL DEFAULT '',
				target_url TEXT NOT NULL DEFAULT '',
				serve_enabled BOOLEAN NOT NULL DEFAULT 0,
				shuffle BOOLEAN NOT NULL DEFAULT 0,
				active_from TIMESTAMP,
				active_to TIMESTAMP,
				filter TEXT,
				conditions TEXT,
				column_condition_pairs TEXT,
				rubric_cells TEXT,
				rows_all_false TEXT,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE UNIQUE INDEX idx_workflow_actions_name ON workflow_actions(workflow_id, name);

			CREATE TABLE workflow_views (
				workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				columns TEXT,
				formula TEXT,
				PRIMARY KEY (workflow_id, name)
			);
		`,
	}
}
