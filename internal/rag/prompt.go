package rag

import (
	"fmt"
	"strings"
)

const (
	// NoDocumentContext replaces the context block when nothing matched.
	NoDocumentContext = "Aucun document pertinent trouvé."
	// RefusalSentence is what the model must answer when the context is silent.
	RefusalSentence = "Je ne trouve pas cette information dans les documents officiels."

	unknownDocumentTitle = "Document inconnu"
	contextDelimiter     = "\n---\n\n"
)

// SystemPrompt is the fixed instruction block placed in front of every grounded prompt.
const SystemPrompt = `Vous êtes un assistant administratif universitaire intelligent.

INSTRUCTIONS IMPORTANTES:
1. Répondez UNIQUEMENT en vous basant sur le contexte fourni
2. Si l'information n'est pas dans le contexte, répondez: "` + RefusalSentence + `"
3. Citez toujours la source du document dans votre réponse
4. Soyez concis et professionnel
5. Répondez en français
6. Si plusieurs sources contradictoires, mentionnez-le clairement

Format de réponse souhaité:
- Réponse directe à la question
- Citation de la source entre parenthèses

Exemple:
"Pour obtenir une attestation de scolarité, vous devez vous rendre au bureau des affaires académiques avec votre carte d'étudiant (Source: Guide de l'étudiant, Page 15)."
`

// RetrievedChunk is a stored chunk returned by a similarity search.
type RetrievedChunk struct {
	ChunkID    uint    `json:"chunk_id"`
	DocumentID uint    `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	PageNumber *int    `json:"page_number,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// SourceDocument is a document referenced by at least one retrieved chunk.
type SourceDocument struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// RetrievalResult is the outcome of one query against the chunk store.
type RetrievalResult struct {
	Query     string           `json:"query"`
	Chunks    []RetrievedChunk `json:"chunks"`
	Documents []SourceDocument `json:"documents"`
}

// AssembleContext renders retrieved chunks as numbered source blocks.
func AssembleContext(result RetrievalResult) string {
	if len(result.Chunks) == 0 {
		return NoDocumentContext
	}

	titles := make(map[uint]string, len(result.Documents))
	for _, d := range result.Documents {
		titles[d.ID] = d.Title
	}

	blocks := make([]string, 0, len(result.Chunks))
	for i, c := range result.Chunks {
		title, ok := titles[c.DocumentID]
		if !ok || title == "" {
			title = unknownDocumentTitle
		}
		pageInfo := ""
		if c.PageNumber != nil {
			pageInfo = fmt.Sprintf(" (Page %d)", *c.PageNumber)
		}
		blocks = append(blocks, fmt.Sprintf("[%d] Source: %s%s\nContenu: %s\n", i+1, title, pageInfo, c.Content))
	}
	return strings.Join(blocks, contextDelimiter)
}

// BuildPrompt embeds the question and its context into the instruction template.
func BuildPrompt(query, context string) string {
	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\nCONTEXTE:\n")
	b.WriteString(context)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(query)
	b.WriteString("\n\nRÉPONSE:")
	return b.String()
}

// QuestionFromPrompt recovers the question embedded by BuildPrompt. Prompts
// that were not built by BuildPrompt are returned whole.
func QuestionFromPrompt(prompt string) string {
	const openTag, closeTag = "QUESTION:", "RÉPONSE:"
	idx := strings.LastIndex(prompt, openTag)
	if idx < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[idx+len(openTag):]
	if end := strings.LastIndex(rest, closeTag); end >= 0 {
		rest = rest[:end]
	}
	if q := strings.TrimSpace(rest); q != "" {
		return q
	}
	return strings.TrimSpace(prompt)
}
