package generative

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"mapagov/internal/catalog"
	"mapagov/internal/logging"
)

// GeminiLabeler implements Labeler using the official genai client.
type GeminiLabeler struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiLabeler creates a labeler backed by the Gemini API.
func NewGeminiLabeler(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiLabeler, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generative API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiLabeler{cli: cli, model: model, timeout: timeout}, nil
}

// labelPrompt constrains the model to the catalog's naming conventions:
// one line, infinitive verb phrase, scoped to the anchor path.
const labelPrompt = `Você é um especialista em mapeamento de processos do setor público brasileiro.

Um servidor descreveu uma atividade de trabalho que ainda não existe no catálogo
oficial de atividades. Gere o nome canônico dessa atividade.

Hierarquia escolhida:
- Macroprocesso: %s
- Processo: %s
- Subprocesso: %s

Descrição do servidor:
%s

Regras:
1. Responda com UMA única linha contendo apenas o nome da atividade.
2. Comece com um verbo no infinitivo (ex.: "Analisar", "Conceder", "Instruir").
3. Seja específico e consistente com o subprocesso escolhido.
4. Não use pontuação final, aspas ou numeração.`

// ActivityLabel generates the canonical label. The call is bounded by the
// configured timeout; errors are returned to the caller, which decides
// retry vs. abort.
func (g *GeminiLabeler) ActivityLabel(ctx context.Context, description string, anchor catalog.Anchor) (string, error) {
	timer := logging.StartTimer(logging.CategoryGenerative, "ActivityLabel")
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(labelPrompt, anchor.Macroprocess, anchor.Process, anchor.Subprocess, description)
	logging.GenerativeDebug("Label request: model=%s, anchor=%s/%s/%s, description=%d bytes",
		g.model, anchor.Macroprocess, anchor.Process, anchor.Subprocess, len(description))

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		logging.Get(logging.CategoryGenerative).Error("GenerateContent failed: %v", err)
		return "", fmt.Errorf("generative call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generative call returned no candidates")
	}

	label := sanitizeLabel(resp.Candidates[0].Content.Parts[0].Text)
	if label == "" {
		return "", fmt.Errorf("generative call returned an empty label")
	}

	logging.Generative("Generated activity label: %q", label)
	return label, nil
}

// sanitizeLabel reduces model output to the single-line label the catalog
// expects: first non-empty line, quotes and trailing punctuation stripped.
// Models sometimes nest the two (`"Label".`), so trimming repeats until
// the line stops shrinking.
func sanitizeLabel(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		for {
			trimmed := strings.Trim(line, "\"'`")
			trimmed = strings.TrimRight(trimmed, ".;:")
			trimmed = strings.TrimSpace(trimmed)
			if trimmed == line {
				break
			}
			line = trimmed
		}
		if line != "" {
			return line
		}
	}
	return ""
}
