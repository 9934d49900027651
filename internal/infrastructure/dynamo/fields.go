package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID       = "user_id"
	fieldType         = "type"
	fieldVerified     = "verified"
	fieldAuthProvider = "auth_provider"
	fieldIssuedAt     = "issued_at"
	fieldUpdatedAt    = "updated_at"
	fieldMaterialID   = "material_id"
)
