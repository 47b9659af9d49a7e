package model

// User is the authenticated identity synthesized at login.
type User struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"displayName"`
	Token       string `json:"sessionToken"`
}

// Profile holds the onboarding-gate state recorded after first login:
// whether the consent form was accepted and which user classification
// was chosen. It survives logout.
type Profile struct {
	ConsentGiven       bool
	Classification     string
	ClassificationDone bool
}
