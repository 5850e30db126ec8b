package documents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidPayload indicates that document data failed decoding or field validation.
	ErrInvalidPayload = errors.New("documents: invalid payload")
	// ErrPayloadTypeMismatch indicates that a payload was saved under the wrong document type.
	ErrPayloadTypeMismatch = errors.New("documents: payload type mismatch")
)

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

// Payload is the closed set of document shapes the store accepts.
type Payload interface {
	DocumentType() Type
	Insights() []ContributedInsight
	AppendInsight(insight ContributedInsight)
	normalize()
}

// ContributedInsight records an approved contribution folded into a document.
type ContributedInsight struct {
	ContributionID   string    `json:"contributionId" validate:"required,max=36"`
	ContributorName  *string   `json:"contributorName"`
	IsAnonymous      bool      `json:"isAnonymous"`
	Content          string    `json:"content" validate:"required"`
	ContributionType string    `json:"contributionType" validate:"required,oneof=intel suggestion question correction"`
	TargetSection    *string   `json:"targetSection"`
	AddedAt          time.Time `json:"addedAt"`
}

// normalizeInsights drops the contributor name of anonymous insights so no surface can show it.
func normalizeInsights(insights []ContributedInsight) []ContributedInsight {
	if insights == nil {
		return []ContributedInsight{}
	}
	for index := range insights {
		if insights[index].IsAnonymous {
			insights[index].ContributorName = nil
		}
	}
	return insights
}

// MessagingPillar is one supporting theme of the positioning statement.
type MessagingPillar struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	ProofPoints []string `json:"proofPoints"`
}

// PositioningDocument is the company positioning and messaging framework.
type PositioningDocument struct {
	Headline            string               `json:"headline"`
	Subheadline         string               `json:"subheadline"`
	ValueProposition    string               `json:"valueProposition"`
	TargetAudience      string               `json:"targetAudience"`
	Pillars             []MessagingPillar    `json:"pillars" validate:"dive"`
	Differentiators     []string             `json:"differentiators"`
	ContributedInsights []ContributedInsight `json:"contributedInsights" validate:"dive"`
}

func (d *PositioningDocument) DocumentType() Type { return TypePositioning }

func (d *PositioningDocument) Insights() []ContributedInsight { return d.ContributedInsights }

func (d *PositioningDocument) AppendInsight(insight ContributedInsight) {
	d.ContributedInsights = append(d.ContributedInsights, insight)
}

func (d *PositioningDocument) normalize() {
	if d.Pillars == nil {
		d.Pillars = []MessagingPillar{}
	}
	for index := range d.Pillars {
		if d.Pillars[index].ProofPoints == nil {
			d.Pillars[index].ProofPoints = []string{}
		}
	}
	if d.Differentiators == nil {
		d.Differentiators = []string{}
	}
	d.ContributedInsights = normalizeInsights(d.ContributedInsights)
}

// Objection pairs a prospect objection with the recommended response.
type Objection struct {
	Objection string `json:"objection" validate:"required"`
	Response  string `json:"response"`
}

// CompetitorCard is one competitor section of the battlecard.
type CompetitorCard struct {
	ID         string      `json:"id" validate:"required,max=190"`
	Name       string      `json:"name" validate:"required"`
	Website    string      `json:"website" validate:"omitempty,url"`
	Overview   string      `json:"overview"`
	Strengths  []string    `json:"strengths"`
	Weaknesses []string    `json:"weaknesses"`
	HowWeWin   []string    `json:"howWeWin"`
	Objections []Objection `json:"objections" validate:"dive"`
	Landmines  []string    `json:"landmines"`
}

// BattlecardDocument is the competitive battlecard.
type BattlecardDocument struct {
	Competitors         []CompetitorCard     `json:"competitors" validate:"dive"`
	ContributedInsights []ContributedInsight `json:"contributedInsights" validate:"dive"`
}

func (d *BattlecardDocument) DocumentType() Type { return TypeCompetitors }

func (d *BattlecardDocument) Insights() []ContributedInsight { return d.ContributedInsights }

func (d *BattlecardDocument) AppendInsight(insight ContributedInsight) {
	d.ContributedInsights = append(d.ContributedInsights, insight)
}

func (d *BattlecardDocument) normalize() {
	if d.Competitors == nil {
		d.Competitors = []CompetitorCard{}
	}
	for index := range d.Competitors {
		card := &d.Competitors[index]
		if card.Strengths == nil {
			card.Strengths = []string{}
		}
		if card.Weaknesses == nil {
			card.Weaknesses = []string{}
		}
		if card.HowWeWin == nil {
			card.HowWeWin = []string{}
		}
		if card.Objections == nil {
			card.Objections = []Objection{}
		}
		if card.Landmines == nil {
			card.Landmines = []string{}
		}
	}
	d.ContributedInsights = normalizeInsights(d.ContributedInsights)
}

// DefaultPayload returns the empty shape served before the first version exists.
func DefaultPayload(documentType Type) (Payload, error) {
	var payload Payload
	switch documentType {
	case TypePositioning:
		payload = &PositioningDocument{}
	case TypeCompetitors:
		payload = &BattlecardDocument{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentType, documentType)
	}
	payload.normalize()
	return payload, nil
}

// DecodePayload strictly decodes raw JSON into the shape for documentType and validates it.
func DecodePayload(documentType Type, raw []byte) (Payload, error) {
	payload, err := DefaultPayload(documentType)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidPayload)
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ValidatePayload runs field validation and fills nil collections.
func ValidatePayload(payload Payload) error {
	if payload == nil || reflect.ValueOf(payload).IsNil() {
		return fmt.Errorf("%w: data is required", ErrInvalidPayload)
	}
	if err := payloadValidator.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidPayload, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	payload.normalize()
	return nil
}

func encodePayload(payload Payload) ([]byte, error) {
	payload.normalize()
	return json.Marshal(payload)
}
