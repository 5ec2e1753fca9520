package analysis

import (
	"context"
	"fmt"

	"truthscan/internal/llm"
	"truthscan/internal/models"
)

const entityPrompt = `You are an expert entity recognition AI. Your task is to identify and list all named entities from the text provided.

Categorize the entities into the following types:
- PERSON: Named people.
- ORGANIZATION: Companies, institutions, or groups.
- LOCATION: Specific places, cities, or countries.
- EVENT: Significant historical or ongoing events.

If no entities of a certain type are found, return an empty array for that key. Do not make up entities.

Respond with a JSON object containing the recognized entities.

Example output format:
{
  "persons": ["Elon Musk", "Joe Biden"],
  "organizations": ["SpaceX", "Tesla"],
  "locations": ["New York", "Paris"],
  "events": ["The Super Bowl"]
}

Now, analyze the following text and extract the entities:

Text:
%q`

// RecognizeEntities returns the named entities in text by category.
func (s *Service) RecognizeEntities(ctx context.Context, text string) (models.Entities, error) {
	content, err := s.completeJSON(ctx, "", fmt.Sprintf(entityPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}
	var raw map[string]interface{}
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}
	return models.NormalizeEntities(raw), nil
}
