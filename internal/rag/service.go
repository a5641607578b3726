package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/gkchatty/gkchatty-local/internal/llm"
	"github.com/gkchatty/gkchatty-local/internal/vectordb"
)

// Source identifies a chunk that backed an answer.
type Source struct {
	DocumentID string  `json:"document_id,omitempty"`
	FileName   string  `json:"file_name"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float32 `json:"similarity"`
	Snippet    string  `json:"snippet,omitempty"`
}

// Answer is the result of asking the knowledge base a question.
type Answer struct {
	Content      string   `json:"content"`
	Sources      []Source `json:"sources"`
	Model        string   `json:"model,omitempty"`
	InputTokens  int      `json:"input_tokens,omitempty"`
	OutputTokens int      `json:"output_tokens,omitempty"`
	// Grounded is false when nothing relevant was found and the content is
	// the canned fallback rather than a model completion.
	Grounded bool `json:"grounded"`
}

// FallbackAnswer is returned when retrieval finds nothing above the
// similarity floor. The model is never consulted in that case.
const FallbackAnswer = "I don't have anything about that in the knowledge base. " +
	"Try rephrasing the question, or ask an admin to upload relevant documents."

const snippetLength = 200

// Service answers questions with retrieval-augmented completions.
type Service struct {
	retriever *Retriever
	provider  llm.Provider
	model     string
	profile   *Profile
}

// NewService wires the retrieval pipeline to a completion provider. A nil
// provider gives a retrieval-only service; Ask then reports sources without
// synthesizing an answer.
func NewService(store vectordb.VectorStore, provider llm.Provider, model string, profile *Profile, opts RetrievalOptions) *Service {
	if profile == nil {
		profile = DefaultProfile()
	}
	return &Service{
		retriever: NewRetriever(store, opts),
		provider:  provider,
		model:     model,
		profile:   profile,
	}
}

// Retriever exposes the underlying retriever for raw searches.
func (s *Service) Retriever() *Retriever { return s.retriever }

// Ask retrieves context from the namespace and synthesizes a grounded answer.
// History carries earlier turns of the conversation, oldest first.
func (s *Service) Ask(ctx context.Context, namespace, question string, history []llm.Message) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	results, err := s.retriever.Retrieve(ctx, namespace, question)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &Answer{Content: FallbackAnswer, Sources: []Source{}, Grounded: false}, nil
	}

	sources := make([]Source, len(results))
	for i, res := range results {
		snippet := res.Document.Content
		if len(snippet) > snippetLength {
			snippet = snippet[:snippetLength] + "..."
		}
		sources[i] = Source{
			DocumentID: res.Document.Metadata.DocumentID,
			FileName:   res.Document.Metadata.FileName,
			ChunkIndex: res.Document.Metadata.ChunkIndex,
			Similarity: res.Similarity,
			Snippet:    snippet,
		}
	}

	if s.provider == nil {
		return &Answer{Sources: sources, Grounded: true}, nil
	}

	contextBlock := s.retriever.BuildContext(results)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.profile.SystemPrompt()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: buildUserPrompt(contextBlock, question),
	})

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	return &Answer{
		Content:      strings.TrimSpace(resp.Content),
		Sources:      sources,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Grounded:     true,
	}, nil
}

func buildUserPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`Context from the knowledge base:

%s
Question: %s`, contextBlock, question)
}
