// Package embedder turns text into fixed-dimension vectors.
//
// Every backend implements Runtime with the same positional contract:
// Embed returns exactly one vector per input text, in input order, even when
// the context is cancelled part way (the tail is zero-filled).
//
// # Runtimes
//
//   - HashRuntime: code points hashed into 256 buckets and L2-normalized.
//     No network, deterministic, the universal fallback.
//   - OllamaRuntime: heavier local model served by Ollama (/api/embed).
//     Never downloads anything; ModelManager owns install and removal.
//   - CloudProvider: OpenAI or Jina compatible HTTP API with batching,
//     exponential backoff, request pacing and an LRU cache.
//   - FallbackRuntime: tries a primary runtime and falls back to another on
//     any failure except cancellation. Fallbacks are logged, not returned.
//
// # Basic Usage
//
//	rt := embedder.NewLocalRuntime(embedder.Config{UseHeavyModel: true}, logger)
//	res, err := rt.Embed(ctx, []string{"func main() {}"}, embedder.InputDocument)
//	if err != nil && !types.IsCancellation(err) {
//	    return err
//	}
//	fmt.Println(res.Model.ID, len(res.Vectors))
//
// # Caching
//
// Remote and Ollama results are cached by model, input type and SHA-256 of
// the text. Cached vectors are copied on read.
package embedder
