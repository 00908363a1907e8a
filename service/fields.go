package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
)

// FieldService calls the field-extraction model over HTTP.
type FieldService struct {
	config     *config.ExtractionConfig
	httpClient *http.Client
}

// FieldRequest asks the model for a set of named fields in text.
type FieldRequest struct {
	Model        string             `json:"model,omitempty"`
	DocumentType model.DocumentType `json:"document_type"`
	Prompt       string             `json:"prompt"`
	Fields       []string           `json:"fields"`
	Text         string             `json:"text"`
}

// FieldResponse carries the extracted fields. A null fields value means the
// model found nothing.
type FieldResponse struct {
	Fields model.Fields `json:"fields"`
}

type extractionPrompt struct {
	system string
	fields []string
}

var prompts = map[model.DocumentType]extractionPrompt{
	model.DocumentPolicy: {
		system: "Eres un experto en pólizas de seguro. Del texto del usuario obtén el número de la póliza " +
			"(suele estar cerca de la palabra póliza), la razón social del contratante, la fecha de inicio " +
			"de vigencia y la fecha fin de vigencia. Devuelve las fechas como dd/mm/aaaa.",
		fields: []string{model.FieldPolicyNumber, model.FieldPolicyName, model.FieldPolicyStartDate, model.FieldPolicyEndDate},
	},
	model.DocumentRegistration: {
		system: "Eres un experto en inscripciones registrales de SUNARP. Del texto obtén el número de " +
			"inscripción o partida, la razón social a favor de quien está la inscripción (suele figurar " +
			"como acreedor hipotecario) y la fecha de presentación del título.",
		fields: []string{model.FieldInscriptionNumber, model.FieldLegalName, model.FieldInscriptionDate},
	},
	model.DocumentAppraisal: {
		system: "Eres un experto en tasaciones. Del texto obtén el nombre del perito tasador, la fecha de la " +
			"tasación en formato dd/mm/aaaa, el valor comercial en soles, el valor de realización en soles " +
			"y el nombre del propietario.",
		fields: []string{model.FieldExpertName, model.FieldAppraisalDate, model.FieldCommercialValue, model.FieldRealizationValue, model.FieldAppraisalOwner},
	},
}

func NewFieldService(cfg *config.ExtractionConfig) *FieldService {
	return &FieldService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ExtractFields sends text with the prompt for docType. It returns nil fields
// when the model could not extract anything.
func (s *FieldService) ExtractFields(ctx context.Context, docType model.DocumentType, text string) (model.Fields, error) {
	p, ok := prompts[docType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDocumentType, docType)
	}

	reqBody := FieldRequest{
		Model:        s.config.Model,
		DocumentType: docType,
		Prompt:       p.system,
		Fields:       p.fields,
		Text:         text,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/extract", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	var result FieldResponse
	if err := doJSON(s.httpClient, req, "extraction", &result); err != nil {
		return nil, err
	}
	if len(result.Fields) == 0 {
		return nil, nil
	}
	return result.Fields, nil
}
