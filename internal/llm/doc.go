// Package llm wraps the external text classification and generation
// capability behind an OpenRouter-compatible chat completion client.
//
// The engines treat the capability as a black box with unbounded-but-finite
// latency and a non-zero failure rate: CompleteJSON takes instructions plus
// context text and returns the raw JSON the model produced, with bounded
// retries for transient transport and rate-limit failures. DecodeJSON
// tolerates the usual model formatting quirks (code fences, surrounding
// prose). Prompt text lives here so every caller stays in sync.
package llm
