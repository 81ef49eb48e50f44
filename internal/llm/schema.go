package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"meridian/internal/core"
	"meridian/internal/links"
)

// ErrInvalidExtraction wraps every schema violation.
var ErrInvalidExtraction = errors.New("invalid extraction")

// extractionPayload is the wire shape of a model response. Pointer fields
// tell a missing or null value apart from an empty string.
type extractionPayload struct {
	BankingStories []storyPayload `json:"bankingStories" validate:"required,max=3,dive"`
	AIStories      []storyPayload `json:"aiStories" validate:"required,max=3,dive"`
}

type storyPayload struct {
	Title            *string `json:"title" validate:"required,notblank"`
	ExecutiveSummary *string `json:"executiveSummary" validate:"required,notblank"`
	BusinessImpact   *string `json:"businessImpact" validate:"required"`
	SourceURL        *string `json:"sourceUrl" validate:"required,abshttp"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("abshttp", func(fl validator.FieldLevel) bool {
		return links.IsAbsoluteHTTP(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ParseExtraction validates raw model output against the extraction shape:
//
//	{"bankingStories": [story, ...], "aiStories": [story, ...]}
//
// where each list holds at most three stories and every story carries string
// title, executiveSummary, businessImpact and sourceUrl fields. Title and
// executiveSummary must be non-blank and sourceUrl an absolute http(s) URL.
// Unknown keys are ignored. Any violation rejects the whole payload.
func ParseExtraction(raw string) (*core.Extraction, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidExtraction)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExtraction, describeValidation(err))
	}

	return &core.Extraction{
		BankingStories: toStories(payload.BankingStories),
		AIStories:      toStories(payload.AIStories),
	}, nil
}

// describeValidation names the first failing field, e.g.
// "bankingStories[1].sourceUrl failed abshttp".
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func toStories(in []storyPayload) []core.DigestStory {
	out := make([]core.DigestStory, 0, len(in))
	for _, p := range in {
		out = append(out, core.DigestStory{
			Title:            strings.TrimSpace(*p.Title),
			ExecutiveSummary: strings.TrimSpace(*p.ExecutiveSummary),
			BusinessImpact:   strings.TrimSpace(*p.BusinessImpact),
			SourceURL:        strings.TrimSpace(*p.SourceURL),
		})
	}
	return out
}

// stripCodeFence removes a ```json fence some models wrap around output.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
