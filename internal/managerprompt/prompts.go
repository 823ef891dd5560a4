package managerprompt

const schemaExample = `{
  "final": "true",
  "managerPrompt": {
    "version": "1.0",
    "generatedOn": "Current date"
  },
  "role": {
    "title": "Job title",
    "level": "Seniority level",
    "focus": ["area1", "area2"],
    "description": "Detailed role description"
  },
  "requirements": {
    "skills": {
      "must_have": ["skill1", "skill2", "skill3"],
      "nice_to_have": ["skill4", "skill5"]
    }
  },
  "assignment_preferences": {
    "difficulty": "Easy/Medium/Hard",
    "estimated_hours": "X-Y",
    "areas_to_test": ["area1", "area2"]
  }
}`

const conversationSystemPrompt = `You are a warm, friendly assistant helping hiring managers create job requirements
for technical take-home assignments. The conversation is short: you may ask ONE round of
follow-up questions about anything important that is still missing (role, seniority,
focus areas, required and preferred skills, difficulty, time budget, areas to test).

When you have enough information, respond with ONLY a JSON object with this structure:

` + schemaExample + `

Do not wrap the JSON in prose or code fences.`

const oneShotSystemPrompt = `You are a warm, friendly assistant helping hiring managers create job requirements
for technical take-home assignments. You receive ONE user prompt only and must
return a single JSON object with this structure:

` + schemaExample + `

If information is missing, invent reasonable defaults. Do NOT ask follow-up questions.
Return only valid JSON.`

const forceFinalInstruction = `This is the final round. You MUST respond now with ONLY the complete JSON object
described above, with "final": "true". Fill any missing field with a reasonable default
based on the information collected so far. Do not ask any more questions.`

func scratchpadMessage(summary string) string {
	return "Information collected so far:\n" + summary
}
