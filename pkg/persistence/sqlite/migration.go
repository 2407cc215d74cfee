package sqlite

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				event_type TEXT NOT NULL DEFAULT '',
				graph TEXT NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_workflows_status ON workflows(tenant_id, status);
			CREATE INDEX idx_workflows_event_type ON workflows(tenant_id, event_type);

			CREATE TABLE workflow_instances (
				id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				definition_id TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL DEFAULT '',
				graph TEXT NOT NULL,
				initiated_by TEXT NOT NULL DEFAULT '',
				payload TEXT,
				status TEXT NOT NULL CHECK (status IN ('running', 'suspended', 'completed', 'failed', 'cancelled')),
				current_node_id TEXT NOT NULL DEFAULT '',
				error TEXT,
				version INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				completed_at TIMESTAMP,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_workflow_instances_status ON workflow_instances(tenant_id, status);
			CREATE INDEX idx_workflow_instances_definition ON workflow_instances(tenant_id, definition_id);

			CREATE TABLE instance_history (
				tenant_id TEXT NOT NULL,
				instance_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				node_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				outcome TEXT NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				at TIMESTAMP NOT NULL,
				PRIMARY KEY (tenant_id, instance_id, seq),
				FOREIGN KEY (tenant_id, instance_id) REFERENCES workflow_instances(tenant_id, id) ON DELETE CASCADE
			);

			CREATE TABLE pending_actions (
				id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				instance_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				node_name TEXT NOT NULL DEFAULT '',
				assigned_role TEXT NOT NULL DEFAULT '',
				assigned_user TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				decided_by TEXT NOT NULL DEFAULT '',
				decided_at TIMESTAMP,
				reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE UNIQUE INDEX idx_pending_actions_open ON pending_actions(tenant_id, instance_id, node_id) WHERE status = 'pending';
			CREATE INDEX idx_pending_actions_role ON pending_actions(tenant_id, status, assigned_role);
			CREATE INDEX idx_pending_actions_user ON pending_actions(tenant_id, status, assigned_user);

			CREATE TABLE audit_records (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL,
				tenant_id TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				instance_id TEXT NOT NULL,
				node_id TEXT NOT NULL DEFAULT '',
				action_id TEXT NOT NULL DEFAULT '',
				decision TEXT NOT NULL DEFAULT '',
				reason TEXT NOT NULL DEFAULT '',
				at TIMESTAMP NOT NULL,
				UNIQUE (tenant_id, id)
			);

			CREATE INDEX idx_audit_records_instance ON audit_records(tenant_id, instance_id);
		`,
	}
}
