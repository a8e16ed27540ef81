package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailtoys/internal/model"
)

func detectionByType(detections []ToyDetection, toyType string) *ToyDetection {
	for i := range detections {
		if detections[i].ToyType == toyType {
			return &detections[i]
		}
	}
	return nil
}

func TestMatchRulesUrgentBody(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Server status",
		Body:    "This is URGENT, the payment service is down.",
	})

	det := detectionByType(detections, model.ToyUrgent)
	require.NotNil(t, det)
	assert.Equal(t, 0.91, det.ConfidenceScore)
	assert.Equal(t, "Urgent request in: Server status", det.DetectionData["reason"])
	assert.NotEmpty(t, det.DetectionData["deadline"])
}

func TestMatchRulesUrgentSubjectOnly(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Urgent: sign the contract",
		Body:    "See attachment.",
	})
	require.NotNil(t, detectionByType(detections, model.ToyUrgent))
}

func TestMatchRulesFollowUpDeadlines(t *testing.T) {
	friday := MatchRules(EmailInput{Subject: "Report", Body: "Send the report by Friday."})
	det := detectionByType(friday, model.ToyFollowUp)
	require.NotNil(t, det)
	assert.Equal(t, 0.92, det.ConfidenceScore)
	assert.Equal(t, "Follow up on: Report", det.DetectionData["action"])
	assert.Equal(t, model.PriorityHigh, det.DetectionData["priority"])

	// The horizon shifts with the weekday mentioned.
	monday := MatchRules(EmailInput{Subject: "Report", Body: "Get back to me by Monday."})
	require.NotNil(t, detectionByType(monday, model.ToyFollowUp))
}

func TestMatchRulesKudos(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Q3 launch",
		Body:    "Great work on the release, congratulations to the team!",
	})

	det := detectionByType(detections, model.ToyKudos)
	require.NotNil(t, det)
	assert.Equal(t, 0.85, det.ConfidenceScore)
	assert.Equal(t, "Work mentioned in: Q3 launch", det.DetectionData["achievement"])
}

func TestMatchRulesTask(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Onboarding",
		Body:    "Can you set up the new laptop?",
	})

	det := detectionByType(detections, model.ToyTask)
	require.NotNil(t, det)
	assert.Equal(t, 0.78, det.ConfidenceScore)
	assert.Equal(t, model.PriorityMedium, det.DetectionData["priority"])
}

func TestMatchRulesMultipleTypesFire(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Release",
		Body:    "Great work so far. Please send the final build ASAP.",
	})

	assert.NotNil(t, detectionByType(detections, model.ToyKudos))
	assert.NotNil(t, detectionByType(detections, model.ToyFollowUp))
	assert.NotNil(t, detectionByType(detections, model.ToyTask))
	assert.NotNil(t, detectionByType(detections, model.ToyUrgent))
}

func TestMatchRulesNoKeywords(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Lunch",
		Body:    "Anyone up for tacos?",
	})
	assert.Empty(t, detections)
}

func TestMatchRulesCaseInsensitive(t *testing.T) {
	detections := MatchRules(EmailInput{
		Subject: "Notes",
		Body:    "WELL DONE everyone.",
	})
	assert.NotNil(t, detectionByType(detections, model.ToyKudos))
}
