package llm

import (
	"fmt"

	"github.com/realtime-ai/wellness-call/pkg/session"
)

const (
	// DefaultConcern is used when no alert is associated with the call.
	DefaultConcern = "wellness check"
	// PendingAssessment is shown before the first classification.
	PendingAssessment = "Initial assessment pending"
)

const dialogueSystemTemplate = `You are Dr. Sarah, a licensed therapist working with a patient monitoring system.
ALERT CONTEXT:
- Specific Concerns: %[1]s

CURRENT EMOTIONAL ASSESSMENT: %[2]s

THERAPEUTIC APPROACH:
- This is an emergency wellness check triggered by vital sign alerts
- Be professionally concerned but not alarmist
- Acknowledge the specific vital signs that triggered this call
- Assess if the vital changes correlate with emotional/psychological distress
- Use gentle probing to understand what might be causing these physiological changes
- Look for connections between physical symptoms and mental state

CONVERSATION STYLE:
- Start by explaining this is an automated wellness check due to concerning vitals
- Be specific about what the monitoring detected: "%[1]s"
- Ask about current activities, stressors, or events that might explain the vital changes
- Assess both physical comfort and emotional wellbeing
- If severe distress is detected, guide toward immediate care resources

Keep responses concise but thorough (2-3 sentences max per response).
This is a phone call: reply with plain spoken sentences, no markdown or lists.`

const classificationTemplate = `Given the user's response: "%s",
Respond with ONLY one of these options:
SEVERELY_DEPRESSED
MILDLY_DEPRESSED
NEUTRAL
POSITIVE`

// DialoguePrompt builds the reply-generation request. An empty concern falls
// back to DefaultConcern and an empty state to PendingAssessment.
func DialoguePrompt(transcript []session.Message, concern string, state session.EmotionalState) Prompt {
	if concern == "" {
		concern = DefaultConcern
	}
	assessment := string(state)
	if assessment == "" {
		assessment = PendingAssessment
	}

	messages := make([]session.Message, len(transcript))
	copy(messages, transcript)

	return Prompt{
		System:   fmt.Sprintf(dialogueSystemTemplate, concern, assessment),
		Messages: messages,
	}
}

// ClassificationPrompt builds the constrained four-label request.
func ClassificationPrompt(utterance string) Prompt {
	return Prompt{
		Messages: []session.Message{
			{Role: session.RoleUser, Content: fmt.Sprintf(classificationTemplate, utterance)},
		},
	}
}
