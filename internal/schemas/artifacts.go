package schemas

// TrendList is the schema for the research stage output.
const TrendList = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "TrendList",
  "type": "object",
  "required": ["trends"],
  "properties": {
    "trends": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["topic", "score"],
        "properties": {
          "topic": {"type": "string", "minLength": 1},
          "summary": {"type": "string"},
          "source_url": {"type": "string"},
          "score": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// DraftList is the schema for the develop stage output.
const DraftList = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "DraftList",
  "type": "object",
  "required": ["drafts"],
  "properties": {
    "drafts": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["title", "body"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "body": {"type": "string", "minLength": 1},
          "hashtags": {
            "type": "array",
            "items": {"type": "string"}
          },
          "format": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// ReviewList is the schema for the edit stage output.
const ReviewList = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "ReviewList",
  "type": "object",
  "required": ["reviews"],
  "properties": {
    "reviews": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["approved", "score"],
        "properties": {
          "approved": {"type": "boolean"},
          "score": {"type": "number", "minimum": 0, "maximum": 1},
          "feedback": {"type": "string"},
          "title": {"type": "string"},
          "body": {"type": "string"},
          "hashtags": {
            "type": "array",
            "items": {"type": "string"}
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`
