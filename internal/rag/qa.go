package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"chatkit/internal/config"
	"chatkit/internal/extract"
	"chatkit/internal/prompt"
	"chatkit/internal/provider"
	"chatkit/internal/runner"
	"chatkit/pkg/logger"
)

// Options tune retrieval.
type Options struct {
	// TopK is how many chunks are shown to the model. Default is 3.
	TopK int

	// Lambda weighs relevance against diversity in MMR. Default is 0.7.
	Lambda float64

	// Chunker splits free text passed to AskText.
	Chunker ChunkerOptions

	// CacheSize bounds the chunk vector cache. Default is DefaultCacheSize.
	CacheSize int
}

// DefaultOptions returns the default retrieval options.
func DefaultOptions() Options {
	return Options{TopK: 3, Lambda: 0.7, Chunker: DefaultChunkerOptions()}
}

// Chunk is a chunk shown to the model, numbered from 1 by its position in
// the caller's list.
type Chunk struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Answer is the outcome of one question.
type Answer struct {
	Answer    string          `json:"answer"`
	Sources   []int           `json:"sources"`
	Chunks    []Chunk         `json:"chunks"`
	Injection InjectionScan   `json:"injection"`
	Usage     *provider.Usage `json:"usage,omitempty"`
}

// QA answers questions from document chunks.
type QA struct {
	session  *runner.Session
	embedder Embedder
	chunker  *Chunker
	topK     int
	lambda   float64
	log      zerolog.Logger
}

// NewQA creates a QA service. Chunk vectors are cached across questions.
func NewQA(p provider.Provider, e Embedder, cfg runner.Config, opts Options) *QA {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Lambda <= 0 || opts.Lambda > 1 {
		opts.Lambda = 0.7
	}
	return &QA{
		session:  runner.NewSession(p, nil, cfg.WithResultKey(prompt.DefaultAnswerKey).WithStreamThrough(false)),
		embedder: NewCachedEmbedder(e, opts.CacheSize),
		chunker:  NewChunker(opts.Chunker),
		topK:     opts.TopK,
		lambda:   opts.Lambda,
		log:      logger.Component("rag"),
	}
}

// Split cuts text with the configured chunker.
func (q *QA) Split(text string) []string {
	return q.chunker.Split(text)
}

// AskText splits text into chunks and answers from them.
func (q *QA) AskText(ctx context.Context, question, text string, hooks runner.Hooks) (*Answer, error) {
	return q.Ask(ctx, question, q.chunker.Split(text), hooks)
}

// Ask selects the chunks most relevant to question and has the model answer
// from them alone. The answer text streams to hooks.OnPartial.
func (q *QA) Ask(ctx context.Context, question string, chunks []string, hooks runner.Hooks) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	vecs, err := q.embedder.Embed(ctx, append([]string{question}, chunks...))
	if err != nil {
		return nil, err
	}
	picked, err := MMRSelect(vecs[0], vecs[1:], q.topK, q.lambda)
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return &Answer{Answer: prompt.DefaultNotFound, Sources: []int{}, Chunks: []Chunk{}, Injection: ScanInjectionRisk(nil)}, nil
	}

	selected := make([]Chunk, len(picked))
	shown := make([]prompt.DocumentChunk, len(picked))
	texts := make([]string, len(picked))
	for i, idx := range picked {
		selected[i] = Chunk{Number: idx + 1, Text: chunks[idx]}
		shown[i] = prompt.DocumentChunk{Number: idx + 1, Text: chunks[idx]}
		texts[i] = chunks[idx]
	}

	scan := ScanInjectionRisk(texts)
	for i, pos := range scan.Flagged {
		scan.Flagged[i] = selected[pos].Number
	}
	if scan.HasRisk {
		q.log.Warn().Ints("chunks", scan.Flagged).Msg("Selected chunks look like prompt injection")
	}

	system, err := prompt.DocumentQA(prompt.DocumentQAData{})
	if err != nil {
		return nil, err
	}
	user, err := prompt.DocumentQuestion(prompt.DocumentQuestionData{Question: question, Chunks: shown})
	if err != nil {
		return nil, err
	}

	q.log.Debug().Int("chunks", len(chunks)).Ints("picked", picked).Msg("Asking document question")

	res, err := q.session.Exchange(ctx, []provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(user),
	}, runner.Options{ToolChoice: provider.ToolChoiceNone, Hooks: hooks})
	if err != nil {
		return nil, err
	}

	answer, sources, err := parseAnswer(res.Raw)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Answer:    answer,
		Sources:   sources,
		Chunks:    selected,
		Injection: scan,
		Usage:     res.Usage,
	}, nil
}

func parseAnswer(raw string) (string, []int, error) {
	doc, err := extract.DecodeObject(raw)
	if err != nil {
		return "", nil, ErrInvalidAnswer
	}

	answer, _ := doc[prompt.DefaultAnswerKey].(string)
	if answer == "" {
		answer = prompt.DefaultNotFound
	}

	sources := []int{}
	if list, ok := doc["sources"].([]any); ok {
		for _, v := range list {
			// 模型偶尔把编号写成字符串, 只收数字
			if n, ok := v.(float64); ok && n >= 1 {
				sources = append(sources, int(n))
			}
		}
	}
	return answer, sources, nil
}

// OptionsFromAppConfig maps the rag section of the application config.
func OptionsFromAppConfig(c *config.Config) Options {
	return Options{
		TopK:   c.RAG.TopK,
		Lambda: c.RAG.Lambda,
		Chunker: ChunkerOptions{
			Size:     c.RAG.ChunkSize,
			Overlap:  c.RAG.ChunkOverlap,
			MinRunes: DefaultChunkerOptions().MinRunes,
		},
	}
}

// Embed returns vectors for texts through the shared cache.
func (q *QA) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return q.embedder.Embed(ctx, texts)
}
