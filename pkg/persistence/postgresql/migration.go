package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				event_type VARCHAR(255) NOT NULL DEFAULT '',
				graph JSONB NOT NULL,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_workflows_status ON workflows(tenant_id, status);
			CREATE INDEX idx_workflows_event_type ON workflows(tenant_id, event_type);

			CREATE TABLE workflow_instances (
				id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				definition_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT '',
				graph JSONB NOT NULL,
				initiated_by VARCHAR(255) NOT NULL DEFAULT '',
				payload JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'suspended', 'completed', 'failed', 'cancelled')),
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				error JSONB,
				version INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE INDEX idx_workflow_instances_status ON workflow_instances(tenant_id, status);
			CREATE INDEX idx_workflow_instances_definition ON workflow_instances(tenant_id, definition_id);
			CREATE INDEX idx_workflow_instances_created_at ON workflow_instances(created_at);

			CREATE TABLE instance_history (
				tenant_id VARCHAR(255) NOT NULL,
				instance_id VARCHAR(255) NOT NULL,
				seq INTEGER NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				outcome VARCHAR(50) NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (tenant_id, instance_id, seq),
				FOREIGN KEY (tenant_id, instance_id) REFERENCES workflow_instances(tenant_id, id) ON DELETE CASCADE
			);

			CREATE TABLE pending_actions (
				id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				instance_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_name VARCHAR(255) NOT NULL DEFAULT '',
				assigned_role VARCHAR(255) NOT NULL DEFAULT '',
				assigned_user VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				decided_by VARCHAR(255) NOT NULL DEFAULT '',
				decided_at TIMESTAMP WITH TIME ZONE,
				reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (tenant_id, id)
			);

			CREATE UNIQUE INDEX idx_pending_actions_open ON pending_actions(tenant_id, instance_id, node_id) WHERE status = 'pending';
			CREATE INDEX idx_pending_actions_role ON pending_actions(tenant_id, status, assigned_role);
			CREATE INDEX idx_pending_actions_user ON pending_actions(tenant_id, status, assigned_user);

			CREATE TABLE audit_records (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				action VARCHAR(50) NOT NULL,
				instance_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL DEFAULT '',
				action_id VARCHAR(255) NOT NULL DEFAULT '',
				decision VARCHAR(50) NOT NULL DEFAULT '',
				reason TEXT NOT NULL DEFAULT '',
				at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (tenant_id, id)
			);

			CREATE INDEX idx_audit_records_instance ON audit_records(tenant_id, instance_id);
		`,
	}
}
