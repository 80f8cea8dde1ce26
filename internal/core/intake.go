package core

// Question is one entry in the intake questionnaire.  Questions are asked in
// order and every question must be answered before intake can finish.
type Question struct {
	ID   string
	Text string
}

// IntakeSchema is the ordered questionnaire presented to every new patient.
// Keeping it as data makes it easy to tweak without touching the engine.
var IntakeSchema = []Question{
	{ID: "chief_complaint", Text: "What is your main issue today?"},
	{ID: "location", Text: "Where is the problem located?"},
	{ID: "onset", Text: "When did it start?"},
	{ID: "severity", Text: "How severe is it from 1 to 10?"},
	{ID: "relieving_factors", Text: "What makes it better?"},
	{ID: "aggravating_factors", Text: "What makes it worse?"},
	{ID: "fever", Text: "Have you had a fever?"},
	{ID: "medications", Text: "What medications are you currently taking?"},
	{ID: "conditions", Text: "Any chronic conditions?"},
	{ID: "prior_contact", Text: "Have you contacted us about this before?"},
}

// NextQuestion returns the question at the given answer count, or nil when
// the questionnaire is finished.
func NextQuestion(answered int) *Question {
	if answered < 0 || answered >= len(IntakeSchema) {
		return nil
	}
	q := IntakeSchema[answered]
	return &q
}

// IntakeFinished reports whether every question has been answered.
func IntakeFinished(answered int) bool {
	return answered >= len(IntakeSchema)
}
