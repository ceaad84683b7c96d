package domain

// ParticipantID is an opaque arena key for one join attempt. Two joins by
// the same person produce two distinct ids; never infer identity from the
// display name.
type ParticipantID string

type RoomID string

// Membership is the admission state of a join attempt.
// A participant moves Waiting → Admitted or Waiting → Denied exactly once;
// re-joining creates a new entry.
type Membership string

const (
	MembershipWaiting  Membership = "waiting"
	MembershipAdmitted Membership = "admitted"
	MembershipDenied   Membership = "denied"
)

// ParticipantEntry is a user attempting or holding presence in a session.
type ParticipantEntry struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"displayName"`
	Membership  Membership    `json:"membership"`
}
