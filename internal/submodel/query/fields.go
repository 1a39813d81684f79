package query

// Document field names of the stored submodel layout.
const (
	// FieldID holds the submodel id.
	FieldID = "id"
	// FieldSubmodelElements holds the ordered top-level elements.
	FieldSubmodelElements = "submodelElements"
	// FieldIDShort holds an element's idShort.
	FieldIDShort = "idShort"
	// FieldModelType holds an element's kind discriminator.
	FieldModelType = "modelType"
	// FieldValue holds Collection children and List items. Leaf kinds
	// also use it for their scalar value.
	FieldValue = "value"
	// FieldStatements holds Entity statements.
	FieldStatements = "statements"
)
