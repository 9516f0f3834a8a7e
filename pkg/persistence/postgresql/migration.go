package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner VARCHAR(255) NOT NULL DEFAULT '',
				attributes JSONB,
				columns JSONB,
				nrows INT NOT NULL DEFAULT 0,
				ncols INT NOT NULL DEFAULT 0,
				session_key VARCHAR(255) NOT NULL DEFAULT '',
				last_email_hash VARCHAR(64) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
			CREATE UNIQUE INDEX idx_workflows_owner_name ON workflows(owner, name)
				WHERE deleted_at IS NULL;

			-- Create workflow_actions table
			CREATE TABLE workflow_actions (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				action_type VARCHAR(50) NOT NULL,
				text_content TEXT NOT NULL DEFAULT '',
				target_url TEXT NOT NULL DEFAULT '',
				serve_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				shuffle BOOLEAN NOT NULL DEFAULT FALSE,
				active_from TIMESTAMP WITH TIME ZONE,
				active_to TIMESTAMP WITH TIME ZONE,
				filter JSONB,
				conditions JSONB,
				column_condition_pairs JSONB,
				rubric_cells JSONB,
				rows_all_false JSONB,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE UNIQUE INDEX idx_workflow_actions_name ON workflow_actions(workflow_id, name);
			CREATE INDEX idx_workflow_actions_type ON workflow_actions(action_type);

			-- Create workflow_views table
			CREATE TABLE workflow_views (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				columns JSONB,
				formula JSONB,
				PRIMARY KEY (workflow_id, name)
			);
		`,
	}
}
