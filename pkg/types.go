package pkg

import "time"

// State is the lifecycle stage of a session.  Transitions between states are
// validated by the engine; no other mutation path exists.
type State string

const (
	StateIntake          State = "intake"
	StateWaitingForNurse State = "waiting_for_nurse"
	StateNurseActive     State = "nurse_active"
	StateUrgent          State = "urgent"
	StateInactive        State = "inactive"
	StateCompleted       State = "completed"
	StateClosed          State = "closed"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateClosed
}

// Role describes who authored a message or triggered an action.  The
// assistant role is reserved for system-injected messages.
type Role string

const (
	RolePatient   Role = "patient"
	RoleNurse     Role = "nurse"
	RoleAssistant Role = "assistant"
)

// Phase tags a message with the context it was produced in.
type Phase string

const (
	PhaseIntake  Phase = "intake"
	PhaseChat    Phase = "chat"
	PhaseSystem  Phase = "system"
	PhaseSummary Phase = "summary"
)

// IntakeAnswer records one response given during the intake questionnaire.
// Answers are append-only while the session is in intake and frozen after.
type IntakeAnswer struct {
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session represents a single patient consultation.  It is keyed by a UUID
// and tracks the workflow state, intake progress and triage flags.
type Session struct {
	ID             string         `json:"id"`
	Subject        string         `json:"subject"`
	State          State          `json:"state"`
	IntakeAnswers  []IntakeAnswer `json:"intake_answers"`
	Summary        string         `json:"summary,omitempty"`
	Urgent         bool           `json:"is_urgent"`
	UnreadByNurse  bool           `json:"unread_by_nurse"`
	NurseJoined    bool           `json:"nurse_joined"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// Message represents a chat log entry tied to a session.  The message log is
// append-only and retained for audit after the session terminates.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueEntry is one row of the nurse triage queue projection.
type QueueEntry struct {
	SessionID      string    `json:"session_id"`
	Subject        string    `json:"subject"`
	State          State     `json:"state"`
	Urgent         bool      `json:"is_urgent"`
	UnreadByNurse  bool      `json:"unread_by_nurse"`
	Summary        string    `json:"summary,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
