package main

import (
	"context"
	"fmt"
	"log"

	researchgo "github.com/hupe1980/researchgo"
	"github.com/hupe1980/researchgo/embedding"
	"github.com/hupe1980/researchgo/metadata"
)

func main() {
	ctx := context.Background()

	ra, err := researchgo.New(ctx,
		researchgo.WithProvider(embedding.NewLocalProvider(256)),
		researchgo.WithDataDir("./data"),
		researchgo.WithHistory("./data/history.db"),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer ra.Close()

	if ra.Store().Count() == 0 {
		docs := []struct {
			content string
			topic   string
		}{
			{"Artificial intelligence is the simulation of human intelligence by machines. AI systems can learn from data and improve over time.", "ai"},
			{"Machine learning is a subset of artificial intelligence. Larger training sets can increase model accuracy.", "ml"},
			{"As regularization strength grows, overfitting tends to decrease across most model families.", "ml"},
			{"Vector databases enable semantic search: documents are indexed by embedding and queried by similarity.", "infra"},
		}
		for _, d := range docs {
			if _, err := ra.Store().Add(ctx, d.content, metadata.Metadata{"topic": d.topic}); err != nil {
				log.Fatal(err)
			}
		}
		if err := ra.Save(ctx); err != nil {
			log.Fatal(err)
		}
	}

	queries := []string{
		"What is artificial intelligence?",
		"Compare machine learning and vector databases and explain why both matter",
	}

	for _, q := range queries {
		result, err := ra.Run(ctx, q)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Q: %s\n", q)
		fmt.Printf("Confidence: %.2f (%d steps)\n", result.Confidence, len(result.Steps))
		for _, s := range result.Steps {
			fmt.Printf("  [%s] %s -> %s\n", s.ID, s.Type, s.Output)
		}
		fmt.Printf("A: %s\n\n", result.FinalAnswer)
	}
}
