package classifier

import (
	"strings"
	"time"

	"mailtoys/internal/model"
)

// rule matches one toy type by substring. A rule fires when any body keyword
// appears in the lowercased body or any subject keyword in the lowercased
// subject; types are not mutually exclusive.
type rule struct {
	toyType         string
	bodyKeywords    []string
	subjectKeywords []string
	confidence      float64
	data            func(email EmailInput, body string) map[string]any
}

var rules = []rule{
	{
		toyType:      model.ToyKudos,
		bodyKeywords: []string{"great work", "excellent", "well done", "congratulations"},
		confidence:   0.85,
		data: func(email EmailInput, _ string) map[string]any {
			return map[string]any{
				"achievement":      "Work mentioned in: " + email.Subject,
				"person":           "user",
				"suggested_action": "Consider sharing achievement or sending thanks",
			}
		},
	},
	{
		toyType:      model.ToyFollowUp,
		bodyKeywords: []string{"follow up", "get back to me", "send", "by friday", "by monday"},
		confidence:   0.92,
		data: func(email EmailInput, body string) map[string]any {
			// Deadline horizon depends on the weekday mentioned.
			days := 2
			if strings.Contains(body, "friday") {
				days = 3
			} else if strings.Contains(body, "monday") {
				days = 5
			}
			return map[string]any{
				"action":   "Follow up on: " + email.Subject,
				"deadline": futureDate(days),
				"priority": model.PriorityHigh,
			}
		},
	},
	{
		toyType:      model.ToyTask,
		bodyKeywords: []string{"can you", "please", "need to", "make sure"},
		confidence:   0.78,
		data: func(email EmailInput, _ string) map[string]any {
			return map[string]any{
				"task_description": "Task from email: " + email.Subject,
				"priority":         model.PriorityMedium,
			}
		},
	},
	{
		toyType:         model.ToyUrgent,
		bodyKeywords:    []string{"urgent", "asap", "immediately", "critical"},
		subjectKeywords: []string{"urgent"},
		confidence:      0.91,
		data: func(email EmailInput, _ string) map[string]any {
			return map[string]any{
				"reason":        "Urgent request in: " + email.Subject,
				"deadline":      futureDate(1),
				"action_needed": "Review and respond immediately",
			}
		},
	},
}

// MatchRules runs the keyword rule table over an email. Used as the mock
// analysis when no LLM is configured and as the fallback when the LLM fails.
func MatchRules(email EmailInput) []ToyDetection {
	body := strings.ToLower(email.Body)
	subject := strings.ToLower(email.Subject)

	detections := []ToyDetection{}
	for _, r := range rules {
		if !r.matches(body, subject) {
			continue
		}
		detections = append(detections, ToyDetection{
			ToyType:         r.toyType,
			DetectionData:   r.data(email, body),
			ConfidenceScore: r.confidence,
		})
	}
	return detections
}

func (r rule) matches(body, subject string) bool {
	for _, kw := range r.bodyKeywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	for _, kw := range r.subjectKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	return false
}

func futureDate(days int) string {
	return time.Now().Add(time.Duration(days) * 24 * time.Hour).UTC().Format(time.RFC3339)
}
