package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				resource_type VARCHAR(50) NOT NULL CHECK (resource_type IN ('internship', 'resume')),
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'archived')),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_resource_type ON workflows(resource_type);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				sequence INT NOT NULL CHECK (sequence > 0),
				name VARCHAR(255) NOT NULL,
				flow_type VARCHAR(50) NOT NULL CHECK (flow_type IN ('sequential', 'parallel')),
				requires_all BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (workflow_id, sequence)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id);

			CREATE TABLE workflow_step_responsibilities (
				id UUID PRIMARY KEY,
				step_id UUID NOT NULL REFERENCES workflow_steps(id) ON DELETE CASCADE,
				responsibility_type VARCHAR(50) NOT NULL CHECK (responsibility_type IN ('role', 'user', 'director_pool')),
				role_id VARCHAR(255),
				principal_id VARCHAR(255),
				can_approve BOOLEAN NOT NULL DEFAULT FALSE,
				can_reject BOOLEAN NOT NULL DEFAULT FALSE,
				can_comment BOOLEAN NOT NULL DEFAULT FALSE,
				priority INT NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT TRUE
			);

			CREATE INDEX idx_responsibilities_step_id ON workflow_step_responsibilities(step_id);

			-- Instances: at most one non-terminal instance per resource
			CREATE TABLE workflow_instances (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				resource_type VARCHAR(50) NOT NULL,
				resource_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'in_progress', 'approved', 'rejected')),
				current_step_sequence INT NOT NULL DEFAULT 1,
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX idx_workflow_instances_active_resource
				ON workflow_instances(resource_type, resource_id)
				WHERE status IN ('pending', 'in_progress');
			CREATE INDEX idx_workflow_instances_status ON workflow_instances(status);

			-- Approval ledger
			CREATE TABLE workflow_approvals (
				id UUID PRIMARY KEY,
				instance_id UUID NOT NULL REFERENCES workflow_instances(id) ON DELETE CASCADE,
				step_id UUID NOT NULL REFERENCES workflow_steps(id),
				responsibility_id UUID NOT NULL,
				assignee_id VARCHAR(255) NOT NULL,
				requestor_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				responsible BOOLEAN NOT NULL DEFAULT FALSE,
				approver_id VARCHAR(255),
				request_time TIMESTAMP WITH TIME ZONE NOT NULL,
				response_time TIMESTAMP WITH TIME ZONE,
				comments TEXT
			);

			CREATE INDEX idx_workflow_approvals_instance_step ON workflow_approvals(instance_id, step_id);
			CREATE INDEX idx_workflow_approvals_status ON workflow_approvals(status);
			CREATE INDEX idx_workflow_approvals_assignee ON workflow_approvals(assignee_id);

			-- Append-only audit trail
			CREATE TABLE workflow_approval_history (
				id UUID PRIMARY KEY,
				approval_id UUID NOT NULL REFERENCES workflow_approvals(id) ON DELETE CASCADE,
				instance_id UUID NOT NULL,
				action VARCHAR(50) NOT NULL CHECK (action IN ('created', 'approved', 'rejected', 'commented')),
				previous_status VARCHAR(50) NOT NULL,
				new_status VARCHAR(50) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				comments TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_approval_history_approval_id ON workflow_approval_history(approval_id);
			CREATE INDEX idx_approval_history_instance_id ON workflow_approval_history(instance_id);
		`,
		2: `
			-- Principal directory and organization context
			CREATE TABLE principals (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE organizations (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL CHECK (kind IN ('university', 'company'))
			);

			CREATE TABLE organization_members (
				organization_id VARCHAR(255) NOT NULL REFERENCES organizations(id),
				principal_id VARCHAR(255) NOT NULL REFERENCES principals(id),
				is_director BOOLEAN NOT NULL DEFAULT FALSE,
				PRIMARY KEY (organization_id, principal_id)
			);

			CREATE TABLE role_assignments (
				role_id VARCHAR(255) NOT NULL,
				principal_id VARCHAR(255) NOT NULL REFERENCES principals(id),
				PRIMARY KEY (role_id, principal_id)
			);

			CREATE TABLE resource_owners (
				resource_type VARCHAR(50) NOT NULL,
				resource_id VARCHAR(255) NOT NULL,
				organization_id VARCHAR(255) NOT NULL REFERENCES organizations(id),
				PRIMARY KEY (resource_type, resource_id)
			);
		`,
	}
}
