package jobs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/phrazzld/dataset-forge/internal/task"
)

// Chunk sizes are measured in characters.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// Document is one text to split.
type Document struct {
	Name string `json:"name" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// Chunk is a piece of a document, and the unit questions are generated from.
type Chunk struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// TextProcessingParams are the splitter settings.
type TextProcessingParams struct {
	ChunkSize    int `json:"chunk_size" validate:"min=100,max=20000"`
	ChunkOverlap int `json:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"`
}

// TextProcessingInput is the detail a text-processing task is created with.
type TextProcessingInput struct {
	TextProcessingParams
	Documents []Document `json:"documents" validate:"required,min=1,dive"`
}

func (in *TextProcessingInput) applyDefaults() {
	if in.ChunkSize == 0 {
		in.ChunkSize = DefaultChunkSize
		if in.ChunkOverlap == 0 {
			in.ChunkOverlap = DefaultChunkOverlap
		}
	}
}

// TextProcessing splits documents into chunks. Markdown documents are split
// along their heading structure.
type TextProcessing struct {
	deps Deps
}

// ValidateInput implements task.InputValidator.
func (h *TextProcessing) ValidateInput(spec task.CreateSpec) error {
	_, err := decodeInput[TextProcessingInput](spec.Detail)
	return err
}

// Handle implements task.Handler.
func (h *TextProcessing) Handle(ctx context.Context, t *task.Task, p *task.Progress) (*task.Result, error) {
	in, err := decodeInput[TextProcessingInput](t.Detail)
	if err != nil {
		return nil, err
	}

	result, err := run(ctx, h.deps, p, in.TextProcessingParams, in.Documents,
		func(_ context.Context, doc Document) ([]Chunk, error) {
			return splitDocument(doc, in.ChunkSize, in.ChunkOverlap)
		})
	if err != nil {
		return nil, err
	}

	detail := result.Detail.(Detail[TextProcessingParams, Document, []Chunk])
	chunks := 0
	for _, r := range detail.Results {
		chunks += len(r.Value)
	}
	result.Note = fmt.Sprintf("%s; %d chunks", result.Note, chunks)
	return result, nil
}

func splitDocument(doc Document, size, overlap int) ([]Chunk, error) {
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	}

	var splitter textsplitter.TextSplitter
	switch strings.ToLower(path.Ext(doc.Name)) {
	case ".md", ".markdown":
		splitter = textsplitter.NewMarkdownTextSplitter(opts...)
	default:
		splitter = textsplitter.NewRecursiveCharacter(opts...)
	}

	parts, err := splitter.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", doc.Name, err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:   fmt.Sprintf("%s#%d", doc.Name, len(chunks)+1),
			Text: part,
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s has no text", doc.Name)
	}
	return chunks, nil
}
