// internal/common/validation/collections.go
package validation

// Schemas for the three collections exchanged with the remote API and kept
// in the local cache.
var (
	StudentsSchema = MustCompile("students", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "committeeId", "status", "queuePosition"],
    "properties": {
      "id": {"type": "integer", "minimum": 1},
      "name": {"type": "string", "minLength": 1},
      "specialty": {"type": "string"},
      "committeeId": {"type": "integer"},
      "status": {"enum": ["WAITING", "IN_PROGRESS", "COMPLETED"]},
      "queuePosition": {"type": "integer", "minimum": 0},
      "evaluation": {
        "type": "object",
        "required": ["scores"],
        "properties": {
          "scores": {
            "type": ["object", "null"],
            "patternProperties": {"^[0-9]+$": {"type": "number"}},
            "additionalProperties": false
          },
          "notes": {"type": "string"},
          "finalScore": {"type": "number"}
        }
      }
    }
  }
}`)

	CommitteesSchema = MustCompile("committees", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name"],
    "properties": {
      "id": {"type": "integer"},
      "name": {"type": "string"},
      "specialty": {"type": "string"},
      "members": {"type": ["array", "null"], "items": {"type": "string"}}
    }
  }
}`)

	CriteriaSchema = MustCompile("criteria", `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "maxScore"],
    "properties": {
      "id": {"type": "integer"},
      "name": {"type": "string"},
      "maxScore": {"type": "number", "exclusiveMinimum": 0}
    }
  }
}`)
)
