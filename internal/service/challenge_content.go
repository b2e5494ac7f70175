package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-quest-api/internal/apperror"
	"github.com/noah-isme/gema-quest-api/internal/models"
)

const fillBlanksSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["items"],
  "additionalProperties": false,
  "properties": {
    "instructions": {"type": "string", "maxLength": 2000},
    "items": {
      "type": "array",
      "minItems": 1,
      "maxItems": 100,
      "items": {
        "type": "object",
        "required": ["id", "text"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1, "maxLength": 64},
          "text": {"type": "string", "minLength": 1, "maxLength": 1000},
          "options": {
            "type": "array",
            "uniqueItems": true,
            "items": {"type": "string", "minLength": 1, "maxLength": 255}
          },
          "answer_type": {"enum": ["multiple_choice", "text_input"]}
        }
      }
    }
  }
}`

// contentSchemas validates content_json per challenge type.
type contentSchemas struct {
	schemas map[models.ChallengeType]*jsonschema.Schema
}

func newContentSchemas() *contentSchemas {
	return &contentSchemas{
		schemas: map[models.ChallengeType]*jsonschema.Schema{
			models.ChallengeTypeFillBlanks: jsonschema.MustCompileString("fill_blanks_prepositions.json", fillBlanksSchema),
		},
	}
}

// Parse validates raw content for the type and decodes it.
func (c *contentSchemas) Parse(kind models.ChallengeType, raw json.RawMessage) (models.ChallengeContent, error) {
	schema, ok := c.schemas[kind]
	if !ok {
		return models.ChallengeContent{}, apperror.Validation(fmt.Sprintf("unsupported challenge type %q", kind))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.ChallengeContent{}, apperror.Wrap(apperror.KindValidation, ErrInvalidContent.Message, errors.New("content_json is required"))
	}

	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return models.ChallengeContent{}, apperror.Wrap(apperror.KindValidation, ErrInvalidContent.Message, err)
	}
	if err := schema.Validate(document); err != nil {
		return models.ChallengeContent{}, apperror.Wrap(apperror.KindValidation, ErrInvalidContent.Message, schemaCause(err))
	}

	var content models.ChallengeContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return models.ChallengeContent{}, apperror.Wrap(apperror.KindValidation, ErrInvalidContent.Message, err)
	}

	if err := checkItems(content.Items); err != nil {
		return models.ChallengeContent{}, apperror.Wrap(apperror.KindValidation, ErrInvalidContent.Message, err)
	}

	content.Instructions = strings.TrimSpace(content.Instructions)
	return content, nil
}

func checkItems(items []models.ChallengeItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" || id != item.ID {
			return fmt.Errorf("item id %q must be non-blank without surrounding spaces", item.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate item id %q", id)
		}
		seen[id] = struct{}{}

		if item.Kind() == models.AnswerKindMultipleChoice && len(item.Options) == 0 {
			return fmt.Errorf("item %q is multiple choice and needs options", id)
		}
	}
	return nil
}

// schemaCause keeps the most specific message of a schema failure.
func schemaCause(err error) error {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return err
	}
	leaf := validationErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return fmt.Errorf("%s: %s", leaf.InstanceLocation, leaf.Message)
}
