package outbox

const exerciseLoggedSchema = `{
  "type": "object",
  "title": "ExerciseLogged",
  "properties": {
    "exercise_id": {"type": "string"},
    "username": {"type": "string"},
    "activity_type": {"type": "string"},
    "date": {"type": "string"},
    "time": {"type": "integer"},
    "steps": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["exercise_id", "username", "activity_type", "date", "time", "steps", "occurred_at"],
  "additionalProperties": false
}`

const exerciseDeletedSchema = `{
  "type": "object",
  "title": "ExerciseDeleted",
  "properties": {
    "exercise_id": {"type": "string"},
    "username": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["exercise_id", "username", "occurred_at"],
  "additionalProperties": false
}`
