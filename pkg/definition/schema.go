package definition

// JSON schemas the seed documents are validated against before anything is
// written to the store.

const workflowsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["workflows"],
	"properties": {
		"workflows": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "resource_type", "status", "steps"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string", "minLength": 3},
					"description": {"type": "string"},
					"resource_type": {"enum": ["internship", "resume"]},
					"status": {"enum": ["draft", "active", "archived"]},
					"steps": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["sequence", "name", "flow_type"],
							"properties": {
								"id": {"type": "string"},
								"sequence": {"type": "integer", "minimum": 1},
								"name": {"type": "string"},
								"flow_type": {"enum": ["sequential", "parallel"]},
								"requires_all": {"type": "boolean"},
								"is_active": {"type": "boolean"},
								"responsibilities": {
									"type": "array",
									"items": {
										"type": "object",
										"required": ["type"],
										"properties": {
											"id": {"type": "string"},
											"type": {"enum": ["role", "user", "director_pool"]},
											"role_id": {"type": "string"},
											"principal_id": {"type": "string"},
											"can_approve": {"type": "boolean"},
											"can_reject": {"type": "boolean"},
											"can_comment": {"type": "boolean"},
											"priority": {"type": "integer"},
											"is_active": {"type": "boolean"}
										}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

const directorySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"principals": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"email": {"type": "string"},
					"is_active": {"type": "boolean"}
				}
			}
		},
		"organizations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "kind"],
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"kind": {"enum": ["university", "company"]}
				}
			}
		},
		"members": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["organization_id", "principal_id"],
				"properties": {
					"organization_id": {"type": "string"},
					"principal_id": {"type": "string"},
					"is_director": {"type": "boolean"}
				}
			}
		},
		"role_assignments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["role_id", "principal_id"],
				"properties": {
					"role_id": {"type": "string"},
					"principal_id": {"type": "string"}
				}
			}
		},
		"resource_owners": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["resource_type", "resource_id", "organization_id"],
				"properties": {
					"resource_type": {"enum": ["internship", "resume"]},
					"resource_id": {"type": "string"},
					"organization_id": {"type": "string"}
				}
			}
		}
	}
}`
