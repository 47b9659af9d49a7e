package model

import "time"

// Session is the process-wide authentication state. It is rehydrated from
// durable storage at startup and mutated only by auth.Manager.
type Session struct {
	Authenticated bool
	User          *User
	PendingOTP    *PendingOTP
}

// PendingOTP is an issued one-time passcode awaiting verification. At most
// one exists at a time; issuing a new one overwrites the previous.
type PendingOTP struct {
	Identifier string    `json:"identifier"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
