package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/kinstory/internal/worker"
)

// BiographyGenerator is the part of Generator that batch and HTTP callers use
type BiographyGenerator interface {
	Generate(ctx context.Context, req Request) (*Bundle, error)
}

// GenerateJob is one biography request run on the worker pool
type GenerateJob struct {
	Index     int
	Request   Request
	Generator BiographyGenerator
}

// Execute runs the generation
func (j *GenerateJob) Execute(ctx context.Context) worker.Result {
	if err := ctx.Err(); err != nil {
		return &BatchResult{Index: j.Index, PersonID: j.Request.PersonID, Error: err}
	}
	bundle, err := j.Generator.Generate(ctx, j.Request)
	return &BatchResult{
		Index:    j.Index,
		PersonID: j.Request.PersonID,
		Bundle:   bundle,
		Error:    err,
	}
}

// BatchResult is the outcome for one person
type BatchResult struct {
	Index    int
	PersonID string
	Bundle   *Bundle
	Error    error
}

// GetError returns the generation error
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor generates biographies for many people concurrently
type BatchProcessor struct {
	generator   BiographyGenerator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(g BiographyGenerator, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		generator:   g,
		concurrency: concurrency,
	}
}

// Process runs every request and returns results in request order
func (b *BatchProcessor) Process(ctx context.Context, reqs []Request) []*BatchResult {
	if len(reqs) == 0 {
		return []*BatchResult{}
	}

	pool := worker.NewPool(ctx, b.concurrency)
	pool.Start()

	for i, req := range reqs {
		pool.Submit(&GenerateJob{Index: i, Request: req, Generator: b.generator})
	}

	results := pool.Wait()

	out := make([]*BatchResult, 0, len(results))
	for _, r := range results {
		if br, ok := r.(*BatchResult); ok {
			out = append(out, br)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessFile reads person ids from a file and generates each one in scopeID
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath, scopeID string, maxLength int, submit bool) ([]*BatchResult, error) {
	ids, err := ReadIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read person ids: %w", err)
	}

	reqs := make([]Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, Request{PersonID: id, ScopeID: scopeID, MaxLength: maxLength, Submit: submit})
	}
	return b.Process(ctx, reqs), nil
}

// ReadIDsFromFile reads person ids from a file (one per line)
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
