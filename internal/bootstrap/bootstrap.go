// Package bootstrap assembles the training pipeline from configuration for
// the service binaries.
package bootstrap

import (
	"fmt"

	"github.com/nikhilbhutani/aiservices/internal/config"
	"github.com/nikhilbhutani/aiservices/internal/embedding"
	"github.com/nikhilbhutani/aiservices/internal/id"
	"github.com/nikhilbhutani/aiservices/internal/llm"
	"github.com/nikhilbhutani/aiservices/internal/training"
	"github.com/nikhilbhutani/aiservices/pkg/chunker"
	"github.com/nikhilbhutani/aiservices/pkg/textextract"
)

// Orchestrator builds a training orchestrator that stores each job into the
// database named by the job itself.
func Orchestrator(cfg *config.Config, gw llm.Gateway) (*training.Orchestrator, error) {
	ids, err := id.NewGenerator(int64(cfg.Server.NodeID))
	if err != nil {
		return nil, fmt.Errorf("NODE_ID: %w", err)
	}
	return OrchestratorWithStore(cfg, gw, training.PgStore(ids))
}

func OrchestratorWithStore(cfg *config.Config, gw llm.Gateway, open training.StoreOpener) (*training.Orchestrator, error) {
	ch, err := chunker.New(cfg.ChunkerConfig())
	if err != nil {
		return nil, err
	}
	return training.NewOrchestrator(
		textextract.NewDispatcher(),
		ch,
		embedding.NewService(gw, gw.EmbeddingModel(), cfg.LLM.EmbeddingDimensions),
		open,
		training.WithPause(cfg.Training.ChunkPause),
	), nil
}
