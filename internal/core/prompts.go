package core

// prompts.go collects the fixed texts used by the summariser and the system
// messages injected into the chat history on state changes.  Keeping them in
// one file makes them easy to tweak without touching the rest of the code.

const (
	// SummaryInstruction constrains the model to a purely descriptive
	// intake note.  It must never produce advice or diagnoses.
	SummaryInstruction = "You are a medical intake assistant. " +
		"Your only task is to summarize the patient's answers into a short, professional note for a nurse. " +
		"Describe the symptoms and current situation clearly. " +
		"Strictly forbidden: do not provide medical advice, suggestions, diagnoses, or care plans."

	// SummaryFallback is stored when every summary model fails, so the
	// nurse knows to read the raw answers instead.
	SummaryFallback = "System Note: Automated summary could not be generated. Please review patient responses manually."

	// MsgIntakeComplete is shown to the patient when intake finishes.
	MsgIntakeComplete = "Thank you. Your intake is complete. A nurse will review your case shortly."

	// MsgUrgentDetected is shown when keyword detection escalates a case.
	MsgUrgentDetected = "Your message suggests a potentially urgent condition. A nurse has been notified immediately."

	// MsgEmergencyButton is shown when the patient presses the emergency
	// button, as opposed to automatic keyword escalation.
	MsgEmergencyButton = "Emergency button pressed. A nurse has been notified immediately."

	// MsgNurseJoined is shown when a nurse opens the session.
	MsgNurseJoined = "A nurse has joined your case."

	// MsgMarkedInactive is shown when the timeout sweep parks the session.
	MsgMarkedInactive = "This session was marked inactive due to no activity. Send a message to resume."

	// MsgResumed is shown when the patient returns within the grace period.
	MsgResumed = "Welcome back. Your case has been returned to the nurse queue."

	// MsgClosed is shown when the session is closed, manually or by expiry.
	MsgClosed = "This session has been closed."

	// MsgCompleted is shown when a nurse completes the case.
	MsgCompleted = "Your case has been completed by the care team."
)
