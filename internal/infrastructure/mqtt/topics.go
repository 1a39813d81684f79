package mqtt

import "strings"

// TopicPrefix is the first level of every topic this service publishes.
// Consumers written against other submodel repositories subscribe to the
// same layout.
const TopicPrefix = "sm-repository"

// Last topic level of repository events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionPatched = "patched"
)

// Topics builds the topics of one repository instance.
//
//	topics := mqtt.Topics{RepositoryID: "sm-repo"}
//	topics.SubmodelCreated() // sm-repository/sm-repo/submodels/created
//
// Submodel identifiers passed in must already be base64url encoded.
// idShort paths are used as they are; '.' and '[' are legal topic
// characters.
type Topics struct {
	RepositoryID string
}

func (t Topics) join(levels ...string) string {
	return strings.Join(append([]string{TopicPrefix, t.RepositoryID}, levels...), "/")
}

// Submodel returns the topic of a whole-submodel action.
func (t Topics) Submodel(action string) string {
	return t.join("submodels", action)
}

// SubmodelCreated returns sm-repository/{repo}/submodels/created.
func (t Topics) SubmodelCreated() string { return t.Submodel(ActionCreated) }

// SubmodelUpdated returns sm-repository/{repo}/submodels/updated.
func (t Topics) SubmodelUpdated() string { return t.Submodel(ActionUpdated) }

// SubmodelDeleted returns sm-repository/{repo}/submodels/deleted.
func (t Topics) SubmodelDeleted() string { return t.Submodel(ActionDeleted) }

// Element returns the topic of an action on one element, e.g.
// sm-repository/sm-repo/submodels/c20x/submodelElements/B.L[1]/updated.
func (t Topics) Element(encodedID, idShortPath, action string) string {
	return t.join("submodels", encodedID, "submodelElements", idShortPath, action)
}

// ElementsPatched returns the topic of a bulk patch of top-level elements.
func (t Topics) ElementsPatched(encodedID string) string {
	return t.join("submodels", encodedID, "submodelElements", ActionPatched)
}

// Attachment returns the topic of a change to the file behind a File
// element.
func (t Topics) Attachment(encodedID, idShortPath, action string) string {
	return t.join("submodels", encodedID, "submodelElements", idShortPath, "attachment", action)
}

// AllEvents returns the filter matching every topic of the repository.
func (t Topics) AllEvents() string {
	return t.join("#")
}

// Status returns the retained online/offline topic of the repository.
// The broker publishes the last will here when the service drops off.
func (t Topics) Status() string {
	return t.join("status")
}
