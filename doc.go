// Package researchgo is an embeddable local research assistant for Go.
//
// It indexes text documents by semantic vector, decomposes a natural
// language query into a dependency-ordered plan of typed reasoning steps,
// executes that plan against the indexed corpus, and returns a
// confidence-scored answer with traceable per-step provenance.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	ra, _ := researchgo.New(ctx,
//		researchgo.WithProvider(embedding.NewLocalProvider(256)),
//		researchgo.WithDataDir("./data"),
//	)
//	defer ra.Close()
//
//	id, _ := ra.Store().Add(ctx, "Go is a statically typed language.", nil)
//
//	result, _ := ra.Run(ctx, "What is Go?")
//	fmt.Println(result.FinalAnswer, result.Confidence)
//
// # Architecture
//
// The docstore package owns the document ledger and its bijection to
// vector index slots; index/flat provides exact cosine search with
// tombstoned, reusable slots; persistence snapshots both artifacts with
// checksums against a pluggable blobstore (local disk, memory, MinIO,
// S3 with DynamoDB commits); reasoning builds and executes the plan
// graph. This package composes them behind one orchestrator.
package researchgo
