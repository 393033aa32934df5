// Package providers implements the Reviewer interface for each supported LLM
// provider.
//
// Supported providers: Anthropic (Claude, via anthropic-sdk-go), Google
// (Gemini, via google.golang.org/genai), OpenAI and DeepSeek (OpenAI-style
// chat completions), and Ollama / LM Studio for local models.
//
// A Reviewer makes exactly one attempt per call. Failures come back as
// *Error tagged Transient or Permanent; retry policy belongs to the caller.
//
// Use [Open] to obtain a configured Reviewer from environment credentials, or
// [New] followed by Configure to supply credentials explicitly.
package providers
